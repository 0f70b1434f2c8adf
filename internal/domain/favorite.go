package domain

// FavoriteKind selects which of the two favorite sets an id belongs to.
type FavoriteKind string

const (
	FavoriteCity   FavoriteKind = "city"
	FavoriteCrypto FavoriteKind = "crypto"
)
