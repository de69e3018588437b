package players

import (
	"time"

	"github.com/google/uuid"
)

// Rarity buckets player cards.
type Rarity string

const (
	RarityCommon Rarity = "common"
	RarityRare   Rarity = "rare"
	RarityEpic   Rarity = "epic"
	RarityLegend Rarity = "legend"
)

// Player is a virtual item put up for auction.
type Player struct {
	ID          uuid.UUID `db:"id"`
	Name        string    `db:"name"`
	Position    string    `db:"position"`
	Club        string    `db:"club"`
	SkillRating int       `db:"skill_rating"`
	BaseValue   int64     `db:"base_value"`
	Rarity      Rarity    `db:"rarity"`
	ImageURL    string    `db:"image_url"`
	CreatedAt   time.Time `db:"created_at"`
}

// CreatePlayerCommand represents the command to add a player card.
type CreatePlayerCommand struct {
	Name        string
	Position    string
	Club        string
	SkillRating int
	BaseValue   int64
	Rarity      Rarity
	ImageURL    string
}
