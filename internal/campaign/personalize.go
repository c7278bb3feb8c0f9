package campaign

import (
	"strings"

	"github.com/lalith-99/cdpcore/internal/models"
)

// nameFallback stands in for a recipient with no name on file.
const nameFallback = "there"

// Personalize fills the fixed placeholders in subject and bodies with the
// recipient's fields. Replacement is literal; any other {{token}} is left
// as written.
func Personalize(c models.Content, p models.Profile) models.Content {
	name := strings.TrimSpace(p.Name)
	first := name
	if i := strings.Index(name, " "); i >= 0 {
		first = name[:i]
	}
	if name == "" {
		name, first = nameFallback, nameFallback
	}

	r := strings.NewReplacer(
		"{{name}}", name,
		"{{first_name}}", first,
		"{{email}}", p.Email,
		"{{phone}}", p.Phone,
	)
	c.Subject = r.Replace(c.Subject)
	c.HTMLBody = r.Replace(c.HTMLBody)
	c.TextBody = r.Replace(c.TextBody)
	return c
}
