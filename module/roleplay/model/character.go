package model

import "time"

// Character is a player's persona. A character with DeathDate set may no longer speak.
type Character struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"userId"`
	Name      string     `json:"name"`
	DeathDate *time.Time `json:"deathDate,omitempty"`
}

func (c *Character) IsDead() bool {
	return c != nil && c.DeathDate != nil
}

// BelongsTo reports whether userID owns the character.
func (c *Character) BelongsTo(userID int64) bool {
	return c != nil && c.UserID == userID
}
