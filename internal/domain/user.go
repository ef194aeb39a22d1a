package domain

// User represents an account that can log in and receive recommendations.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username" yaml:"username" validate:"required,min=3"`
	FavoriteGenre string `json:"favoriteGenre" yaml:"favoriteGenre" validate:"required"`
}
