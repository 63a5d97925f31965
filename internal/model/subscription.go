package model

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusInactive, SubscriptionStatusPastDue:
		return true
	}
	return false
}

const (
	ProviderPolar  = "polar"
	ProviderStripe = "stripe"
)

// Pro features unlocked by an active subscription.
const (
	FeatureCustomColors = "custom_colors"
	FeatureProjectInfo  = "project_info"
	FeatureMessage      = "custom_message"
	FeatureRatingSort   = "rating_sort"
)

var ProFeatures = []string{
	FeatureCustomColors,
	FeatureProjectInfo,
	FeatureMessage,
	FeatureRatingSort,
}

// SubscriptionInfo is what the presentation layer needs to gate Pro features.
type SubscriptionInfo struct {
	Status   SubscriptionStatus `json:"status"`
	IsPro    bool               `json:"isPro"`
	Features []string           `json:"features"`
}

func NewSubscriptionInfo(status SubscriptionStatus) *SubscriptionInfo {
	info := &SubscriptionInfo{Status: status, Features: []string{}}
	if status == SubscriptionStatusActive {
		info.IsPro = true
		info.Features = append(info.Features, ProFeatures...)
	}
	return info
}
