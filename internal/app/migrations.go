package app

import "serotonyl.ru/deal-desk/internal/db/postgres"

// Migrations: схема базы по версиям. Встроены в код для упрощения деплоя.
var Migrations = []postgres.Migration{
	{Version: 1, SQL: migration001Users},
	{Version: 2, SQL: migration002Credits},
	{Version: 3, SQL: migration003Posts},
	{Version: 4, SQL: migration004Deals},
	{Version: 5, SQL: migration005Workspace},
	{Version: 6, SQL: migration006Notifications},
	{Version: 7, SQL: migration007Admin},
}

var migration001Users = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(255) NOT NULL DEFAULT '',
    email VARCHAR(255) NOT NULL DEFAULT '',
    phone VARCHAR(64) NOT NULL DEFAULT '',
    telegram_chat_id BIGINT,
    is_deactivated BOOLEAN NOT NULL DEFAULT FALSE,
    credits BIGINT NOT NULL DEFAULT 0 CHECK (credits >= 0),
    unlock_credits BIGINT NOT NULL DEFAULT 0 CHECK (unlock_credits >= 0),
    create_credits BIGINT NOT NULL DEFAULT 0 CHECK (create_credits >= 0),
    subscription_expires_at TIMESTAMPTZ,
    total_penalties INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

var migration002Credits = `
CREATE TABLE IF NOT EXISTS credit_history (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    amount BIGINT NOT NULL CHECK (amount > 0),
    type VARCHAR(16) NOT NULL,
    credit_type VARCHAR(16) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    related_entity BIGINT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_credit_history_user ON credit_history(user_id, created_at DESC);
`

var migration003Posts = `
CREATE TABLE IF NOT EXISTS posts (
    id BIGSERIAL PRIMARY KEY,
    author_id BIGINT NOT NULL REFERENCES users(id),
    title VARCHAR(255) NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    post_status VARCHAR(16) NOT NULL DEFAULT 'Active',
    expires_at TIMESTAMPTZ,
    deal_status VARCHAR(16) NOT NULL DEFAULT 'Available',
    deal_toggle_status VARCHAR(16) NOT NULL DEFAULT 'Pending',
    deal_result VARCHAR(16) NOT NULL DEFAULT 'Pending',
    validity_reminder_sent BOOLEAN NOT NULL DEFAULT FALSE,
    is_expired BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_posts_expires ON posts(expires_at) WHERE is_expired = FALSE;

CREATE TABLE IF NOT EXISTS post_unlocks (
    post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    unlocked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (post_id, user_id)
);
`

var migration004Deals = `
CREATE TABLE IF NOT EXISTS deals (
    id BIGSERIAL PRIMARY KEY,
    deal_id VARCHAR(32) UNIQUE NOT NULL,
    post_id BIGINT NOT NULL REFERENCES posts(id),
    unlocker_id BIGINT NOT NULL REFERENCES users(id),
    author_id BIGINT NOT NULL REFERENCES users(id),
    masked_contacts JSONB NOT NULL DEFAULT '{}',
    status VARCHAR(16) NOT NULL DEFAULT 'Contacted',
    success_unlocker_at TIMESTAMPTZ,
    success_author_at TIMESTAMPTZ,
    fail_unlocker_at TIMESTAMPTZ,
    fail_author_at TIMESTAMPTZ,
    credit_bonus BIGINT NOT NULL DEFAULT 0,
    credit_penalty BIGINT NOT NULL DEFAULT 0,
    last_reminder_sent TIMESTAMPTZ,
    expires_at TIMESTAMPTZ NOT NULL,
    auto_close_at TIMESTAMPTZ NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    chronic_non_update BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (post_id, unlocker_id)
);
CREATE INDEX IF NOT EXISTS idx_deals_unlocker ON deals(unlocker_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_deals_author ON deals(author_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_deals_open ON deals(status) WHERE is_active = TRUE;

CREATE TABLE IF NOT EXISTS deal_status_history (
    id BIGSERIAL PRIMARY KEY,
    deal_id BIGINT NOT NULL REFERENCES deals(id) ON DELETE CASCADE,
    status VARCHAR(16) NOT NULL,
    updated_by BIGINT,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    notes TEXT NOT NULL DEFAULT '',
    is_admin_override BOOLEAN NOT NULL DEFAULT FALSE,
    initiator VARCHAR(16) NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_deal_history_deal ON deal_status_history(deal_id, updated_at);
`

var migration005Workspace = `
CREATE TABLE IF NOT EXISTS deal_workspace (
    user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    total_deals INTEGER NOT NULL DEFAULT 0,
    won_deals INTEGER NOT NULL DEFAULT 0,
    failed_deals INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS deal_workspace_history (
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
    deal_id BIGINT NOT NULL,
    result VARCHAR(16) NOT NULL,
    notes TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, post_id)
);

CREATE TABLE IF NOT EXISTS user_badges (
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    level INTEGER NOT NULL,
    earned_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, level)
);
`

var migration006Notifications = `
CREATE TABLE IF NOT EXISTS notifications (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    type VARCHAR(32) NOT NULL,
    title VARCHAR(255) NOT NULL,
    message TEXT NOT NULL,
    data JSONB NOT NULL DEFAULT '{}',
    priority VARCHAR(16) NOT NULL DEFAULT 'medium',
    is_read BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at DESC);
`

var migration007Admin = `
CREATE TABLE IF NOT EXISTS admin_sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    session_token VARCHAR(128) UNIQUE NOT NULL,
    authenticated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ NOT NULL,
    last_activity TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_user ON admin_sessions(user_id) WHERE is_active = TRUE;

CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    attempt_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    success BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_admin_attempts_user ON admin_login_attempts(user_id, attempt_time);
`
