package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrConfiguration is returned when a weight table or range is malformed.
// It is fatal at startup; no stream is started over bad distributions.
var ErrConfiguration = errors.New("model: invalid distribution configuration")

// segmentWeightTolerance is the floating tolerance when checking that
// segment weights sum to 1.0.
const segmentWeightTolerance = 1e-9

// FloatRange is an inclusive [Min, Max] band of float values.
type FloatRange struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// IntRange is an inclusive [Min, Max] band of integer values.
type IntRange struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// Contains reports whether v lies within the band.
func (r FloatRange) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Contains reports whether v lies within the band.
func (r IntRange) Contains(v int) bool { return v >= r.Min && v <= r.Max }

// SegmentProfile holds the per-segment behavioral parameters: the ranges
// that bound a user's lifetime spend and order count, and the interaction
// kind weights that shape what the segment does with products.
type SegmentProfile struct {
	// Spend bounds the user's lifetime spend.
	Spend FloatRange `yaml:"spend" json:"spend"`

	// Orders bounds the user's lifetime order count.
	Orders IntRange `yaml:"orders" json:"orders"`

	// KindWeights are integer interaction-kind weights for this segment.
	// The weights of each segment must sum to exactly 100.
	KindWeights map[InteractionKind]int `yaml:"kindWeights" json:"kindWeights"`
}

// Distributions is the full set of weighted domains the generator samples
// from. A zero Distributions is not usable; construct with Default and
// validate before use.
type Distributions struct {
	// SegmentWeights are the probabilities of assigning each segment to a
	// new user. They must sum to 1.0 within a floating tolerance.
	SegmentWeights map[Segment]float64 `yaml:"segmentWeights" json:"segmentWeights"`

	// Profiles hold per-segment spend/order ranges and interaction weights.
	Profiles map[Segment]SegmentProfile `yaml:"profiles" json:"profiles"`

	// PriceBands bound product prices per category.
	PriceBands map[Category]FloatRange `yaml:"priceBands" json:"priceBands"`

	// DeviceWeights are integer weights for assigning device classes.
	DeviceWeights map[DeviceClass]int `yaml:"deviceWeights" json:"deviceWeights"`

	// Durations bound interaction duration (seconds) per kind.
	Durations map[InteractionKind]IntRange `yaml:"durations" json:"durations"`

	// Quantity bounds the purchase quantity.
	Quantity IntRange `yaml:"quantity" json:"quantity"`

	// Rating bounds product ratings.
	Rating FloatRange `yaml:"rating" json:"rating"`

	// Reviews bounds product review counts.
	Reviews IntRange `yaml:"reviews" json:"reviews"`

	// Age bounds user ages.
	Age IntRange `yaml:"age" json:"age"`

	// Preferences bounds how many preferred categories a user gets.
	Preferences IntRange `yaml:"preferences" json:"preferences"`
}

// Default returns the built-in distributions. The segment mix skews heavily
// casual; purchase weight rises with segment tier from 2% to 20%.
func Default() Distributions {
	return Distributions{
		SegmentWeights: map[Segment]float64{
			SegmentCasual:  0.40,
			SegmentRegular: 0.35,
			SegmentPower:   0.20,
			SegmentPremium: 0.05,
		},
		Profiles: map[Segment]SegmentProfile{
			SegmentCasual: {
				Spend:  FloatRange{Min: 0, Max: 500},
				Orders: IntRange{Min: 0, Max: 10},
				KindWeights: map[InteractionKind]int{
					KindView: 60, KindClick: 25, KindAddToCart: 8, KindPurchase: 2, KindWishlist: 5,
				},
			},
			SegmentRegular: {
				Spend:  FloatRange{Min: 500, Max: 2000},
				Orders: IntRange{Min: 10, Max: 50},
				KindWeights: map[InteractionKind]int{
					KindView: 50, KindClick: 20, KindAddToCart: 15, KindPurchase: 8, KindWishlist: 7,
				},
			},
			SegmentPower: {
				Spend:  FloatRange{Min: 2000, Max: 10000},
				Orders: IntRange{Min: 50, Max: 200},
				KindWeights: map[InteractionKind]int{
					KindView: 40, KindClick: 15, KindAddToCart: 20, KindPurchase: 15, KindWishlist: 10,
				},
			},
			SegmentPremium: {
				Spend:  FloatRange{Min: 10000, Max: 50000},
				Orders: IntRange{Min: 200, Max: 1000},
				KindWeights: map[InteractionKind]int{
					KindView: 35, KindClick: 10, KindAddToCart: 25, KindPurchase: 20, KindWishlist: 10,
				},
			},
		},
		PriceBands: map[Category]FloatRange{
			CategoryElectronics: {Min: 50, Max: 2000},
			CategoryClothing:    {Min: 10, Max: 200},
			CategoryHome:        {Min: 20, Max: 500},
			CategoryBeauty:      {Min: 15, Max: 100},
			CategorySports:      {Min: 30, Max: 300},
			CategoryBooks:       {Min: 10, Max: 50},
			CategoryToys:        {Min: 15, Max: 80},
			CategoryAutomotive:  {Min: 50, Max: 800},
			CategoryGrocery:     {Min: 5, Max: 50},
			CategoryHealth:      {Min: 10, Max: 150},
		},
		DeviceWeights: map[DeviceClass]int{
			DeviceMobile: 55, DeviceDesktop: 35, DeviceTablet: 10,
		},
		Durations: map[InteractionKind]IntRange{
			KindView:      {Min: 5, Max: 300},
			KindClick:     {Min: 1, Max: 30},
			KindAddToCart: {Min: 2, Max: 60},
			KindPurchase:  {Min: 10, Max: 120},
			KindWishlist:  {Min: 1, Max: 45},
		},
		Quantity:    IntRange{Min: 1, Max: 3},
		Rating:      FloatRange{Min: 3.0, Max: 5.0},
		Reviews:     IntRange{Min: 0, Max: 5000},
		Age:         IntRange{Min: 18, Max: 80},
		Preferences: IntRange{Min: 1, Max: 4},
	}
}

// Validate checks every weight table and range. Any malformed distribution
// returns an error wrapping ErrConfiguration.
func (d *Distributions) Validate() error {
	if len(d.SegmentWeights) == 0 {
		return fmt.Errorf("%w: segment weights are required", ErrConfiguration)
	}

	var sum float64
	for seg, w := range d.SegmentWeights {
		if w < 0 {
			return fmt.Errorf("%w: negative weight for segment %s", ErrConfiguration, seg)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > segmentWeightTolerance {
		return fmt.Errorf("%w: segment weights sum to %v, want 1.0", ErrConfiguration, sum)
	}

	for _, seg := range Segments() {
		profile, ok := d.Profiles[seg]
		if !ok {
			return fmt.Errorf("%w: missing profile for segment %s", ErrConfiguration, seg)
		}
		if profile.Spend.Min < 0 || profile.Spend.Max < profile.Spend.Min {
			return fmt.Errorf("%w: invalid spend range for segment %s", ErrConfiguration, seg)
		}
		if profile.Orders.Min < 0 || profile.Orders.Max < profile.Orders.Min {
			return fmt.Errorf("%w: invalid order range for segment %s", ErrConfiguration, seg)
		}

		kindSum := 0
		for kind, w := range profile.KindWeights {
			if w < 0 {
				return fmt.Errorf("%w: negative weight for %s/%s", ErrConfiguration, seg, kind)
			}
			kindSum += w
		}
		if kindSum != 100 {
			return fmt.Errorf("%w: interaction weights for segment %s sum to %d, want 100", ErrConfiguration, seg, kindSum)
		}
	}

	for _, cat := range Categories() {
		band, ok := d.PriceBands[cat]
		if !ok {
			return fmt.Errorf("%w: missing price band for category %s", ErrConfiguration, cat)
		}
		if band.Min <= 0 || band.Max < band.Min {
			return fmt.Errorf("%w: invalid price band for category %s", ErrConfiguration, cat)
		}
	}

	deviceSum := 0
	for dev, w := range d.DeviceWeights {
		if w < 0 {
			return fmt.Errorf("%w: negative weight for device %s", ErrConfiguration, dev)
		}
		deviceSum += w
	}
	if deviceSum == 0 {
		return fmt.Errorf("%w: device weights are all zero", ErrConfiguration)
	}

	for _, kind := range InteractionKinds() {
		dur, ok := d.Durations[kind]
		if !ok {
			return fmt.Errorf("%w: missing duration range for kind %s", ErrConfiguration, kind)
		}
		if dur.Min < 0 || dur.Max < dur.Min {
			return fmt.Errorf("%w: invalid duration range for kind %s", ErrConfiguration, kind)
		}
	}

	if d.Quantity.Min < 1 || d.Quantity.Max < d.Quantity.Min {
		return fmt.Errorf("%w: invalid quantity range", ErrConfiguration)
	}
	if d.Rating.Min < 0 || d.Rating.Max > 5 || d.Rating.Max < d.Rating.Min {
		return fmt.Errorf("%w: invalid rating range", ErrConfiguration)
	}
	if d.Reviews.Min < 0 || d.Reviews.Max < d.Reviews.Min {
		return fmt.Errorf("%w: invalid review count range", ErrConfiguration)
	}
	if d.Age.Min < 0 || d.Age.Max < d.Age.Min {
		return fmt.Errorf("%w: invalid age range", ErrConfiguration)
	}
	if d.Preferences.Min < 1 || d.Preferences.Max < d.Preferences.Min || d.Preferences.Max > len(Categories()) {
		return fmt.Errorf("%w: invalid preference count range", ErrConfiguration)
	}

	return nil
}

// TagPool returns the tag vocabulary for a category. Unknown categories get
// a generic pool so product generation never fails on a new category.
func TagPool(cat Category) []string {
	if tags, ok := tagPools[cat]; ok {
		return tags
	}
	return []string{"premium", "quality"}
}

var tagPools = map[Category][]string{
	CategoryElectronics: {"wireless", "smart", "portable", "hd", "bluetooth", "touchscreen"},
	CategoryClothing:    {"cotton", "formal", "casual", "summer", "winter", "vintage"},
	CategoryHome:        {"modern", "vintage", "compact", "luxury", "minimalist", "decorative"},
	CategoryBeauty:      {"organic", "natural", "luxury", "professional", "skincare", "moisturizing"},
	CategorySports:      {"outdoor", "fitness", "professional", "lightweight", "durable", "waterproof"},
	CategoryBooks:       {"bestseller", "fiction", "non-fiction", "educational", "award-winning", "classic"},
	CategoryToys:        {"educational", "interactive", "safe", "creative", "battery-operated", "wooden"},
	CategoryAutomotive:  {"durable", "high-performance", "fuel-efficient", "luxury", "sport", "electric"},
	CategoryGrocery:     {"organic", "fresh", "local", "gluten-free", "premium", "artisanal"},
	CategoryHealth:      {"natural", "vitamin-rich", "organic", "doctor-recommended", "clinically-tested", "safe"},
}

// Browsers is the finite browser pool for users and sessions.
var Browsers = []string{"chrome", "firefox", "safari", "edge"}

// Genders is the finite gender pool for users.
var Genders = []string{"male", "female", "other"}

// Referrers is the finite referrer pool for interactions. The empty string
// means direct traffic.
var Referrers = []string{"/home", "/search", "/category", "/recommendations", ""}

// MaxSessionIdle and MaxSessionDuration are the default session bounds.
const (
	MaxSessionIdle     = 30 * time.Minute
	MaxSessionDuration = 2 * time.Hour
)
