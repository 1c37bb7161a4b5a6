package domain

import "time"

// Template is a catalog entry users can install. Its name doubles as a
// reserved subdomain prefix: user-supplied domains under the platform root
// must not claim or shadow a template's default subdomain.
type Template struct {
	Name        string
	Title       string
	Description string
	PriceCents  int64
	Active      bool
	CreatedAt   time.Time
}
