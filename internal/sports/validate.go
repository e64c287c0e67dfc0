package sports

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"match-predictor/internal/common"

	"github.com/go-playground/validator/v10"
)

var (
	validate  = newValidator()
	recordRex = regexp.MustCompile(`^\d+-\d+(-\d+)?$`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(matchStructLevel, Match{})
	return v
}

func matchStructLevel(sl validator.StructLevel) {
	m := sl.Current().Interface().(Match)
	if m.HomeTeam.ID != "" && m.HomeTeam.ID == m.AwayTeam.ID {
		sl.ReportError(m.AwayTeam.ID, "AwayTeam.ID", "awayTeamId", "nefield", "HomeTeam.ID")
	}
}

// Validate checks a match received from outside the process. The returned
// error wraps common.ErrInvalidMatch.
func Validate(m Match) error {
	if err := validate.Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", common.ErrInvalidMatch, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", common.ErrInvalidMatch, err)
	}
	return nil
}

// SanitizeRecord returns the record unchanged when it looks like "W-L" or
// "W-L-T" and "0-0" otherwise.
func SanitizeRecord(record string) string {
	record = strings.TrimSpace(record)
	if recordRex.MatchString(record) {
		return record
	}
	return "0-0"
}
