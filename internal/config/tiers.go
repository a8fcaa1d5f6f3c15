package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	AmountTypeFixed  = "fixed"
	AmountTypeCustom = "custom"

	FrequencyOnce    = "once"
	FrequencyMonthly = "monthly"
)

// Tier describes one contribution product offered at checkout.
type Tier struct {
	Key               string   `mapstructure:"key" json:"key"`
	Label             string   `mapstructure:"label" json:"label"`
	Name              string   `mapstructure:"name" json:"name"`
	AmountZAR         int64    `mapstructure:"amountZar" json:"amount_zar"`
	DisplayAmount     string   `mapstructure:"displayAmount" json:"display_amount"`
	Benefits          []string `mapstructure:"benefits" json:"benefits"`
	CTA               string   `mapstructure:"cta" json:"cta"`
	AmountType        string   `mapstructure:"amountType" json:"amount_type"`
	DefaultFrequency  string   `mapstructure:"defaultFrequency" json:"default_frequency"`
	AllowFrequency    bool     `mapstructure:"allowFrequency" json:"allow_frequency"`
	ContributionLabel string   `mapstructure:"contributionLabel" json:"contribution_label"`
}

// TierCatalog is the full checkout offering plus the gateway plan code map
// keyed by "<tier>:<frequency>".
type TierCatalog struct {
	Tiers     []Tier            `mapstructure:"tiers"`
	PlanCodes map[string]string `mapstructure:"planCodes"`
}

func (c TierCatalog) Find(key string) (Tier, bool) {
	for _, tier := range c.Tiers {
		if tier.Key == key {
			return tier, true
		}
	}
	return Tier{}, false
}

// PlanCode returns the gateway plan code configured for a tier/frequency pair.
func (c TierCatalog) PlanCode(tierKey, frequency string) (string, bool) {
	code, ok := c.PlanCodes[tierKey+":"+frequency]
	if !ok || strings.TrimSpace(code) == "" {
		return "", false
	}
	return code, true
}

func DefaultTierCatalog() TierCatalog {
	return TierCatalog{
		Tiers: []Tier{
			{
				Key:               "tier-1",
				Label:             "Tier 1",
				Name:              "Every bit helps",
				AmountZAR:         50,
				DisplayAmount:     "R50 / month",
				Benefits:          []string{"Name in our supporters list", "Helps spread knowledge"},
				CTA:               "Chip in monthly",
				AmountType:        AmountTypeFixed,
				DefaultFrequency:  FrequencyMonthly,
				ContributionLabel: "Monthly Contribution",
			},
			{
				Key:               "tier-2",
				Label:             "Tier 2",
				Name:              "Support the journey",
				DisplayAmount:     "Your choice",
				Benefits:          []string{"Behind-the-scenes updates", "Vote on features and roadmaps"},
				CTA:               "Support the journey",
				AmountType:        AmountTypeCustom,
				DefaultFrequency:  FrequencyOnce,
				ContributionLabel: "Single Contribution",
			},
			{
				Key:               "tier-3",
				Label:             "Tier 3",
				Name:              "Traders Club",
				AmountZAR:         8800,
				DisplayAmount:     "R8800",
				Benefits:          []string{"Discuss our roadmap with us", "Meet the founders"},
				CTA:               "Start building with us",
				AmountType:        AmountTypeFixed,
				DefaultFrequency:  FrequencyOnce,
				ContributionLabel: "Single Contribution",
			},
		},
		PlanCodes: map[string]string{},
	}
}

// TierCatalogHolder serves the current catalog and swaps it atomically on
// config file changes.
type TierCatalogHolder struct {
	current atomic.Value // holds TierCatalog
}

func NewTierCatalogHolder() (*TierCatalogHolder, error) {
	v := viper.New()

	v.SetConfigName("tiers")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/patron/config")
	v.AddConfigPath("/etc/patron")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PATRON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	catalog := DefaultTierCatalog()
	if fileFound {
		var loaded TierCatalog
		if err := v.UnmarshalKey("catalog", &loaded); err != nil {
			return nil, err
		}
		if err := validateTierCatalog(loaded); err != nil {
			return nil, err
		}
		catalog = loaded
	}

	holder := &TierCatalogHolder{}
	holder.current.Store(catalog)

	if fileFound {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated TierCatalog
			if err := v.UnmarshalKey("catalog", &updated); err != nil {
				log.Printf("[tier-config] reload failed: %v", err)
				return
			}
			if err := validateTierCatalog(updated); err != nil {
				log.Printf("[tier-config] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[tier-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

// NewStaticTierCatalogHolder wraps a fixed catalog. Used by tests.
func NewStaticTierCatalogHolder(catalog TierCatalog) *TierCatalogHolder {
	holder := &TierCatalogHolder{}
	holder.current.Store(catalog)
	return holder
}

func (h *TierCatalogHolder) Get() TierCatalog {
	return h.current.Load().(TierCatalog)
}

func validateTierCatalog(catalog TierCatalog) error {
	if len(catalog.Tiers) == 0 {
		return errors.New("catalog.tiers cannot be empty")
	}
	for _, tier := range catalog.Tiers {
		if strings.TrimSpace(tier.Key) == "" {
			return errors.New("catalog tier key cannot be empty")
		}
		switch tier.AmountType {
		case AmountTypeFixed:
			if tier.AmountZAR <= 0 {
				return errors.New("fixed tier " + tier.Key + " requires a positive amount")
			}
		case AmountTypeCustom:
		default:
			return errors.New("tier " + tier.Key + " has unknown amount type")
		}
	}
	return nil
}
