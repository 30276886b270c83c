package mail

import (
	"strings"

	"reengage/pkg/email"
)

// DefaultFirstName substitutes for records that carry no usable first name
// and whose email yields nothing either.
const DefaultFirstName = "Customer"

// Render substitutes {first_name} and {voucher} into the stored template.
// Placeholders the template author invented beyond these two pass through
// unchanged. A missing first name falls back to a name derived from the
// email local part, then to DefaultFirstName.
func Render(template, firstName, voucher, emailAddr string) string {
	name := strings.TrimSpace(firstName)
	if name == "" {
		name = email.FallbackFirstName(emailAddr, DefaultFirstName)
	}
	replacer := strings.NewReplacer(
		"{first_name}", name,
		"{voucher}", voucher,
	)
	return replacer.Replace(template)
}
