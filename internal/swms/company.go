package swms

const DefaultBrandColor = "#1e40af"

type SubscriptionStatus string

const (
	SubscriptionTrial   SubscriptionStatus = "trial"
	SubscriptionActive  SubscriptionStatus = "active"
	SubscriptionExpired SubscriptionStatus = "expired"
)

// Company is the tenant a signed-in user works for. It is passed explicitly
// to everything that brands output or scopes queries.
type Company struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	AcnAbn             string             `json:"acnAbn,omitempty"`
	Logo               string             `json:"logo,omitempty"`
	Color              string             `json:"color"`
	SubscriptionStatus SubscriptionStatus `json:"subscriptionStatus"`
	UserRole           string             `json:"userRole,omitempty"`
}

func (c Company) SubscriptionActive() bool {
	return c.SubscriptionStatus == SubscriptionActive || c.SubscriptionStatus == SubscriptionTrial
}

// BrandColor falls back to the default blue when no color is set.
func (c Company) BrandColor() string {
	if c.Color == "" {
		return DefaultBrandColor
	}
	return c.Color
}

// DisplayName is used in export headers and footers.
func (c Company) DisplayName() string {
	if c.Name == "" {
		return "SWMS Manager"
	}
	return c.Name
}
