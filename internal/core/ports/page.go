package ports

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Page is an offset/limit window over an ordered listing.
type Page struct {
	Offset int
	Limit  int
}

// Normalize clamps the window: negative offsets become 0, a missing limit
// becomes DefaultPageLimit and anything above MaxPageLimit is capped.
func (p Page) Normalize() Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}
