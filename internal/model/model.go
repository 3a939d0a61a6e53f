// Package model defines the entity types emitted by the clickstream
// generator and the categorical domains (segments, categories, interaction
// kinds, device classes) they are drawn from.
package model

import "time"

// Segment is the categorical tier of a user. It governs the user's spend
// range, order-count range and interaction-kind weights.
type Segment string

// Supported user segments.
const (
	SegmentCasual  Segment = "casual"
	SegmentRegular Segment = "regular"
	SegmentPower   Segment = "power"
	SegmentPremium Segment = "premium"
)

// Segments returns all user segments in a stable order.
func Segments() []Segment {
	return []Segment{SegmentCasual, SegmentRegular, SegmentPower, SegmentPremium}
}

// Category is the categorical classification of a product. It governs the
// product's price band and tag pool.
type Category string

// Supported product categories.
const (
	CategoryElectronics Category = "electronics"
	CategoryClothing    Category = "clothing"
	CategoryHome        Category = "home"
	CategoryBeauty      Category = "beauty"
	CategorySports      Category = "sports"
	CategoryBooks       Category = "books"
	CategoryToys        Category = "toys"
	CategoryAutomotive  Category = "automotive"
	CategoryGrocery     Category = "grocery"
	CategoryHealth      Category = "health"
)

// Categories returns all product categories in a stable order.
func Categories() []Category {
	return []Category{
		CategoryElectronics, CategoryClothing, CategoryHome, CategoryBeauty,
		CategorySports, CategoryBooks, CategoryToys, CategoryAutomotive,
		CategoryGrocery, CategoryHealth,
	}
}

// InteractionKind identifies what a user did with a product.
type InteractionKind string

// Supported interaction kinds.
const (
	KindView      InteractionKind = "view"
	KindClick     InteractionKind = "click"
	KindAddToCart InteractionKind = "add_to_cart"
	KindPurchase  InteractionKind = "purchase"
	KindWishlist  InteractionKind = "wishlist"
)

// InteractionKinds returns all interaction kinds in a stable order.
func InteractionKinds() []InteractionKind {
	return []InteractionKind{KindView, KindClick, KindAddToCart, KindPurchase, KindWishlist}
}

// DeviceClass identifies the device a user or session is on.
type DeviceClass string

// Supported device classes.
const (
	DeviceMobile  DeviceClass = "mobile"
	DeviceDesktop DeviceClass = "desktop"
	DeviceTablet  DeviceClass = "tablet"
)

// DeviceClasses returns all device classes in a stable order.
func DeviceClasses() []DeviceClass {
	return []DeviceClass{DeviceMobile, DeviceDesktop, DeviceTablet}
}

// EntityKind identifies which entity type a stream or sample produces.
type EntityKind string

// Supported entity kinds for streaming and sampling.
const (
	EntityUsers        EntityKind = "users"
	EntityProducts     EntityKind = "products"
	EntityInteractions EntityKind = "interactions"
	EntitySessions     EntityKind = "sessions"
)

// EntityKinds returns all entity kinds in a stable order.
func EntityKinds() []EntityKind {
	return []EntityKind{EntityUsers, EntityProducts, EntityInteractions, EntitySessions}
}

// ValidEntityKind reports whether k names a streamable entity kind.
func ValidEntityKind(k EntityKind) bool {
	switch k {
	case EntityUsers, EntityProducts, EntityInteractions, EntitySessions:
		return true
	}
	return false
}

// User is a synthesized shopper profile. Users are immutable once created;
// spend and order counts are static profile attributes, not running totals.
type User struct {
	UserID           string      `json:"user_id"`
	Email            string      `json:"email"`
	FirstName        string      `json:"first_name"`
	LastName         string      `json:"last_name"`
	Age              int         `json:"age"`
	Gender           string      `json:"gender"`
	Location         string      `json:"location"`
	Segment          Segment     `json:"user_segment"`
	RegistrationDate time.Time   `json:"registration_date"`
	LastActive       time.Time   `json:"last_active"`
	TotalSpent       float64     `json:"total_spent"`
	OrderCount       int         `json:"order_count"`
	Preferences      []Category  `json:"preferences"`
	DeviceType       DeviceClass `json:"device_type"`
	Browser          string      `json:"browser"`
}

// Product is a synthesized catalog item. Like users, products are immutable
// once created and live in a bounded reference cache.
type Product struct {
	ProductID       string    `json:"product_id"`
	Name            string    `json:"name"`
	Category        Category  `json:"category"`
	Price           float64   `json:"price"`
	Description     string    `json:"description"`
	Brand           string    `json:"brand"`
	Rating          float64   `json:"rating"`
	ReviewCount     int       `json:"review_count"`
	InStock         bool      `json:"in_stock"`
	PopularityScore float64   `json:"popularity_score"`
	Tags            []string  `json:"tags"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Interaction is one clickstream event: a user acting on a product within a
// session. Interactions are created fresh for every emitted event and never
// retained after emission.
type Interaction struct {
	InteractionID string          `json:"interaction_id"`
	UserID        string          `json:"user_id"`
	ProductID     string          `json:"product_id"`
	Kind          InteractionKind `json:"interaction_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SessionID     string          `json:"session_id"`
	DurationSec   int             `json:"duration"`
	Quantity      int             `json:"quantity"`
	Revenue       float64         `json:"revenue"`
	DeviceInfo    string          `json:"device_info"`
	PageURL       string          `json:"page_url"`
	Referrer      string          `json:"referrer,omitempty"`
}

// Session groups a user's consecutive interactions within an inactivity
// window. The session tracker exclusively owns session lifecycle; counts,
// revenue and last-activity are updated by every recorded interaction while
// the session is open.
type Session struct {
	SessionID         string      `json:"session_id"`
	UserID            string      `json:"user_id"`
	StartTime         time.Time   `json:"start_time"`
	LastActivity      time.Time   `json:"last_activity"`
	EndTime           *time.Time  `json:"end_time,omitempty"`
	DeviceType        DeviceClass `json:"device_type"`
	Browser           string      `json:"browser"`
	IPAddress         string      `json:"ip_address"`
	Location          string      `json:"location"`
	InteractionCount  int         `json:"interactions_count"`
	TotalRevenue      float64     `json:"total_revenue"`
	ProductsViewed    []string    `json:"products_viewed"`
	ProductsPurchased []string    `json:"products_purchased"`
}
