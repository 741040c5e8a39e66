package service

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"yamdb-api/internal/domain"
)

var usernameRE = regexp.MustCompile(`^[\w.@+-]+$`)

var notReserved = validation.By(func(v any) error {
	iv, _ := validation.Indirect(v)
	s, _ := iv.(string)
	if strings.EqualFold(s, domain.ReservedUsername) {
		return validation.NewError("validation_username_reserved", `username "me" is reserved`)
	}
	return nil
})

func usernameRules() []validation.Rule {
	return []validation.Rule{
		validation.Length(1, 150),
		validation.Match(usernameRE).Error("may contain only letters, digits and @/./+/-/_"),
		notReserved,
	}
}

func emailRules() []validation.Rule {
	return []validation.Rule{validation.Length(1, 254), is.EmailFormat}
}

func roleRule() validation.Rule {
	roles := make([]any, 0, 4)
	for _, r := range domain.Roles() {
		roles = append(roles, r)
	}
	return validation.In(roles...).Error("unknown role")
}

func normEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
