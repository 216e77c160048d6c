package catalog

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Publisher rows are shared by every game that names them.
type Publisher struct {
	Name string `gorm:"primaryKey;size:255"`
}

type Genre struct {
	Name string `gorm:"primaryKey;size:255"`
}

// Game is the DB model for a catalog game. The id comes from the dataset.
type Game struct {
	ID            int64      `gorm:"primaryKey;autoIncrement:false"`
	Title         *string    `gorm:"size:512"`
	Price         *float64   `gorm:"column:price"`
	ReleaseDate   *string    `gorm:"size:32"`
	Description   *string    `gorm:"type:text"`
	ImageURL      *string    `gorm:"size:1024"`
	WebsiteURL    *string    `gorm:"size:1024"`
	VideoURL      *string    `gorm:"size:1024"`
	PublisherName *string    `gorm:"size:255;index"`
	Publisher     *Publisher `gorm:"foreignKey:PublisherName;references:Name"`
	// Languages is a JSON array of strings.
	Languages datatypes.JSON `gorm:"type:json"`
	// SystemSupport is a JSON object of platform -> bool.
	SystemSupport datatypes.JSON `gorm:"type:json"`

	GenreLinks    []GameGenre    `gorm:"foreignKey:GameID"`
	TagLinks      []GameTag      `gorm:"foreignKey:GameID"`
	CategoryLinks []GameCategory `gorm:"foreignKey:GameID"`
	Reviews       []Review       `gorm:"foreignKey:GameID"`
}

// GameGenre is the game <-> genre association. Position keeps the order the
// genres were attached in.
type GameGenre struct {
	GameID    int64  `gorm:"primaryKey;autoIncrement:false"`
	GenreName string `gorm:"primaryKey;size:255;index"`
	Position  int
}

type GameTag struct {
	GameID   int64  `gorm:"primaryKey;autoIncrement:false"`
	Tag      string `gorm:"primaryKey;size:255;index"`
	Position int
}

type GameCategory struct {
	GameID   int64  `gorm:"primaryKey;autoIncrement:false"`
	Category string `gorm:"primaryKey;size:255;index"`
	Position int
}

type User struct {
	ID           uint      `gorm:"primaryKey"`
	Username     string    `gorm:"size:64;uniqueIndex"`
	PasswordHash string    `gorm:"size:255"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`

	Wishlist   Wishlist    `gorm:"foreignKey:UserID"`
	Favourites []Favourite `gorm:"foreignKey:UserID"`
	Reviews    []Review    `gorm:"foreignKey:UserID"`
}

// Wishlist is owned 1:1 by a user.
type Wishlist struct {
	ID      uint            `gorm:"primaryKey"`
	UserID  uint            `gorm:"uniqueIndex"`
	Entries []WishlistEntry `gorm:"foreignKey:WishlistID"`
}

// WishlistEntry ids give the wishlist its order.
type WishlistEntry struct {
	ID         uint  `gorm:"primaryKey"`
	WishlistID uint  `gorm:"uniqueIndex:uniq_wish_game,priority:1"`
	GameID     int64 `gorm:"uniqueIndex:uniq_wish_game,priority:2"`
}

type Favourite struct {
	ID     uint  `gorm:"primaryKey"`
	UserID uint  `gorm:"uniqueIndex:uniq_fav_game,priority:1"`
	GameID int64 `gorm:"uniqueIndex:uniq_fav_game,priority:2"`
}

func (Favourite) TableName() string { return "user_favourites" }

// Review allows one row per (user, game).
type Review struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"uniqueIndex:uniq_review_user_game,priority:1"`
	GameID    int64     `gorm:"uniqueIndex:uniq_review_user_game,priority:2;index"`
	Rating    int       `gorm:"not null"`
	Comment   string    `gorm:"type:text;not null"`
	Timestamp time.Time `gorm:"not null"`
}

// AutoMigrate creates or updates every catalog table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Publisher{}, &Genre{}, &Game{}, &GameGenre{}, &GameTag{}, &GameCategory{},
		&User{}, &Wishlist{}, &WishlistEntry{}, &Favourite{}, &Review{},
	)
}

func (g *Game) languageList() ([]string, error) {
	var out []string
	if len(g.Languages) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(g.Languages, &out); err != nil {
		return nil, fmt.Errorf("decode languages: %w", err)
	}
	return out, nil
}

func (g *Game) supportMap() (map[string]bool, error) {
	out := map[string]bool{}
	if len(g.SystemSupport) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(g.SystemSupport, &out); err != nil {
		return nil, fmt.Errorf("decode system_support: %w", err)
	}
	return out, nil
}

func jsonOf(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
