package deals

import (
	"strconv"
	"strings"

	"serotonyl.ru/deal-desk/internal/features/users"
)

// MaskEmail: "ivan@corp.ru" → "i***@corp.ru".
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "***@" + domain
	}
	r := []rune(local)
	return string(r[0]) + "***@" + domain
}

// MaskPhone: "+79161234567" → "+7****67". Короче 4 символов: без изменений.
func MaskPhone(phone string) string {
	r := []rune(phone)
	if len(r) < 4 {
		return phone
	}
	return string(r[:2]) + "****" + string(r[len(r)-2:])
}

// TempID: временный идентификатор контакта для автоопределения.
func TempID(userID, postID int64) string {
	return "temp_" + first8(strconv.FormatInt(userID, 10)) + "_" + first8(strconv.FormatInt(postID, 10))
}

func first8(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// MaskContacts считает замаскированные контакты обеих сторон.
func MaskContacts(unlocker, author *users.User, postID int64) MaskedContacts {
	return MaskedContacts{
		Unlocker: MaskedContact{
			Email:  MaskEmail(unlocker.Email),
			Phone:  MaskPhone(unlocker.Phone),
			TempID: TempID(unlocker.ID, postID),
		},
		Author: MaskedContact{
			Email:  MaskEmail(author.Email),
			Phone:  MaskPhone(author.Phone),
			TempID: TempID(author.ID, postID),
		},
	}
}
