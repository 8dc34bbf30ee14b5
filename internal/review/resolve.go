package review

import (
	"strings"

	"github.com/crmkit/dupcheck/internal/types"
)

// ResolveFields computes the field values the merge target should hold
// after absorbing the source, plus a conflict entry for every field
// where both records held different non-empty values.
//
// Resolution policy per field:
//   - one side empty: the non-empty value wins, no conflict
//   - both empty: stays empty
//   - both non-empty and equal: no conflict
//   - both non-empty and different: the more recently created record's
//     value wins, on the assumption that newer data reflects the
//     contact's current details. The losing value is preserved in the
//     conflict entry.
//
// The returned record carries the target's identity (type, id, status,
// created_at); only the matchable fields are resolved.
func ResolveFields(source, target *types.ContactRecord) (*types.ContactRecord, []types.FieldConflict) {
	resolved := *target
	var conflicts []types.FieldConflict

	// Newer record's value wins on conflict
	sourceWins := source.CreatedAt.After(target.CreatedAt)

	fields := []struct {
		name   string
		source string
		target string
		out    *string
	}{
		{"email", source.Email, target.Email, &resolved.Email},
		{"phone", source.Phone, target.Phone, &resolved.Phone},
		{"first_name", source.FirstName, target.FirstName, &resolved.FirstName},
		{"last_name", source.LastName, target.LastName, &resolved.LastName},
		{"address", source.Address, target.Address, &resolved.Address},
	}

	for _, f := range fields {
		sv := strings.TrimSpace(f.source)
		tv := strings.TrimSpace(f.target)

		switch {
		case sv == "":
			*f.out = tv
		case tv == "":
			*f.out = sv
		case sv == tv:
			*f.out = tv
		default:
			winner := tv
			if sourceWins {
				winner = sv
			}
			*f.out = winner
			conflicts = append(conflicts, types.FieldConflict{
				Field:       f.name,
				SourceValue: sv,
				TargetValue: tv,
				Resolved:    winner,
			})
		}
	}

	return &resolved, conflicts
}
