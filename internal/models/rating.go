package models

// Rating is a user's star rating for a title
type Rating struct {
	UserID int64  `json:"userId"`
	ShowID string `json:"showId"`
	Rating int    `json:"rating"`
}

// Interaction is a client-side engagement event (click, view, ...)
type Interaction struct {
	ShowID          string `json:"showId"`
	InteractionType string `json:"interactionType"`
	Timestamp       string `json:"timestamp,omitempty"`
	UserID          string `json:"userId,omitempty"`
}

// RecommendationRequest is the payload forwarded to the title recommender
type RecommendationRequest struct {
	Title string `json:"title"`
	TopN  int    `json:"top_n"`
}

// GenreRecommendationRequest is the payload forwarded to the genre recommender
type GenreRecommendationRequest struct {
	Genre string `json:"genre"`
	TopN  int    `json:"top_n"`
}

// HybridRecommendationRequest is the payload forwarded to the hybrid recommender
type HybridRecommendationRequest struct {
	MovieTitle string `json:"movie_title"`
	UserID     int64  `json:"user_id,omitempty"`
	TopN       int    `json:"top_n"`
}
