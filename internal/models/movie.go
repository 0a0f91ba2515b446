package models

import "strings"

// Genre maps a public genre name to its flag column in movies_titles.
// The catalog schema keeps one nullable integer column per genre; a value of 1
// means the title belongs to that genre.
type Genre struct {
	Name   string
	Column string
}

// Genres is the fixed registry of catalog genres. Order matches column order
// in the movies_titles table and is relied on when scanning rows.
var Genres = []Genre{
	{"Action", "action"},
	{"Adventure", "adventure"},
	{"Anime Series International TV Shows", "anime_series_international_tv_shows"},
	{"British TV Shows Docuseries International TV Shows", "british_tv_shows_docuseries_international_tv_shows"},
	{"Children", "children"},
	{"Comedies", "comedies"},
	{"Comedies Dramas International Movies", "comedies_dramas_international_movies"},
	{"Comedies International Movies", "comedies_international_movies"},
	{"Comedies Romantic Movies", "comedies_romantic_movies"},
	{"Crime TV Shows Docuseries", "crime_tv_shows_docuseries"},
	{"Documentaries", "documentaries"},
	{"Documentaries International Movies", "documentaries_international_movies"},
	{"Docuseries", "docuseries"},
	{"Dramas", "dramas"},
	{"Dramas International Movies", "dramas_international_movies"},
	{"Dramas Romantic Movies", "dramas_romantic_movies"},
	{"Family Movies", "family_movies"},
	{"Fantasy", "fantasy"},
	{"Horror Movies", "horror_movies"},
	{"International Movies Thrillers", "international_movies_thrillers"},
	{"International TV Shows Romantic TV Shows TV Dramas", "international_tv_shows_romantic_tv_shows_tv_dramas"},
	{"Kids' TV", "kids_tv"},
	{"Language TV Shows", "language_tv_shows"},
	{"Musicals", "musicals"},
	{"Nature TV", "nature_tv"},
	{"Reality TV", "reality_tv"},
	{"Spirituality", "spirituality"},
	{"Talk Shows TV Comedies", "talk_shows_tv_comedies"},
	{"Thrillers", "thrillers"},
	{"TV Action", "tv_action"},
	{"TV Comedies", "tv_comedies"},
	{"TV Dramas", "tv_dramas"},
}

// GenreColumn resolves a public genre name to its flag column.
// Matching is case-insensitive. Returns false for unknown names.
func GenreColumn(name string) (string, bool) {
	for _, g := range Genres {
		if strings.EqualFold(g.Name, name) {
			return g.Column, true
		}
	}
	return "", false
}

// GenreNames returns the public names of all catalog genres.
func GenreNames() []string {
	names := make([]string, len(Genres))
	for i, g := range Genres {
		names[i] = g.Name
	}
	return names
}

// Movie represents a catalog entry in movies_titles
type Movie struct {
	ShowID      string         `json:"showId"`
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Director    string         `json:"director,omitempty"`
	Cast        string         `json:"cast,omitempty"`
	Country     string         `json:"country,omitempty"`
	ReleaseYear int            `json:"releaseYear"`
	Rating      string         `json:"rating,omitempty"` // content rating (PG-13, TV-MA, ...)
	Duration    string         `json:"duration,omitempty"`
	Description string         `json:"description,omitempty"`
	PosterURL   string         `json:"posterUrl,omitempty"`
	Genres      map[string]int `json:"genres,omitempty"` // public genre name -> flag (only set flags)
}

// HasGenre reports whether the movie carries the given genre flag.
func (m *Movie) HasGenre(name string) bool {
	for g, v := range m.Genres {
		if strings.EqualFold(g, name) && v == 1 {
			return true
		}
	}
	return false
}

// CatalogPage is the paginated catalog listing response
type CatalogPage struct {
	Movies         []Movie `json:"movies"`
	TotalNumMovies int     `json:"totalNumMovies"`
}
