package models

import "time"

// UserPreferences selects the country, category and keywords used to query the news API.
// At most one record exists per user.
type UserPreferences struct {
	UserID                  string    `json:"userId"`
	PreferredNewsSources    []string  `json:"preferredNewsSources"`
	PreferredNewsCategories []string  `json:"preferredNewsCategories"`
	PreferredNewsKeywords   []string  `json:"preferredNewsKeywords"`
	PreferredNewsLocation   string    `json:"preferredNewsLocation"`
	PreferredNewsLanguage   string    `json:"preferredNewsLanguage"`
	PreferredNewsCountry    string    `json:"preferredNewsCountry"`
	PreferredNewsPageSize   int       `json:"preferredNewsPageSize"`
	PreferredNewsPageNumber int       `json:"preferredNewsPageNumber"`
	PreferredNewsSortBy     string    `json:"preferredNewsSortBy"`
	UpdatedAt               time.Time `json:"updatedAt"`
}

// PreferencesPatch is a partial preference update. Nil fields are left untouched.
type PreferencesPatch struct {
	PreferredNewsSources    *[]string `json:"preferredNewsSources,omitempty"`
	PreferredNewsCategories *[]string `json:"preferredNewsCategories,omitempty"`
	PreferredNewsKeywords   *[]string `json:"preferredNewsKeywords,omitempty"`
	PreferredNewsLocation   *string   `json:"preferredNewsLocation,omitempty"`
	PreferredNewsLanguage   *string   `json:"preferredNewsLanguage,omitempty"`
	PreferredNewsCountry    *string   `json:"preferredNewsCountry,omitempty"`
	PreferredNewsPageSize   *int      `json:"preferredNewsPageSize,omitempty"`
	PreferredNewsPageNumber *int      `json:"preferredNewsPageNumber,omitempty"`
	PreferredNewsSortBy     *string   `json:"preferredNewsSortBy,omitempty"`
}

// Empty reports whether the patch sets no field at all.
func (p PreferencesPatch) Empty() bool {
	return p == PreferencesPatch{}
}

// Apply merges the set fields of p into prefs.
func (p PreferencesPatch) Apply(prefs *UserPreferences) {
	if p.PreferredNewsSources != nil {
		prefs.PreferredNewsSources = append([]string(nil), (*p.PreferredNewsSources)...)
	}
	if p.PreferredNewsCategories != nil {
		prefs.PreferredNewsCategories = append([]string(nil), (*p.PreferredNewsCategories)...)
	}
	if p.PreferredNewsKeywords != nil {
		prefs.PreferredNewsKeywords = append([]string(nil), (*p.PreferredNewsKeywords)...)
	}
	if p.PreferredNewsLocation != nil {
		prefs.PreferredNewsLocation = *p.PreferredNewsLocation
	}
	if p.PreferredNewsLanguage != nil {
		prefs.PreferredNewsLanguage = *p.PreferredNewsLanguage
	}
	if p.PreferredNewsCountry != nil {
		prefs.PreferredNewsCountry = *p.PreferredNewsCountry
	}
	if p.PreferredNewsPageSize != nil {
		prefs.PreferredNewsPageSize = *p.PreferredNewsPageSize
	}
	if p.PreferredNewsPageNumber != nil {
		prefs.PreferredNewsPageNumber = *p.PreferredNewsPageNumber
	}
	if p.PreferredNewsSortBy != nil {
		prefs.PreferredNewsSortBy = *p.PreferredNewsSortBy
	}
}

// NewsArticle is a cached copy of an external article. URL is the natural key and
// a stored article is never rewritten.
type NewsArticle struct {
	ID        string    `json:"newsArticleId"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Source    string    `json:"source"`
	Summary   string    `json:"summary"`
	ImageURL  string    `json:"imageUrl"`
	Date      time.Time `json:"date"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReadNewsArticle records that a user opened an article. Repeated marks produce
// repeated records.
type ReadNewsArticle struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	NewsArticleID string    `json:"newsArticleId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// FavoriteNewsArticle records that a user starred an article.
type FavoriteNewsArticle struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	NewsArticleID string    `json:"newsArticleId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ArticleEvent is published once per newly cached article.
type ArticleEvent struct {
	Article   NewsArticle `json:"article"`
	UserID    string      `json:"userId,omitempty"`
	Query     string      `json:"query,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ArchiveDocument is the searchable representation of a cached article.
type ArchiveDocument struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	URL       string    `json:"url"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Source    string    `json:"source"`
	Keywords  []string  `json:"keywords"`
	Timestamp time.Time `json:"timestamp"`
}

// Normalize replaces nil lists with empty ones so records serialise as [] instead of null.
func (p *UserPreferences) Normalize() {
	if p.PreferredNewsSources == nil {
		p.PreferredNewsSources = []string{}
	}
	if p.PreferredNewsCategories == nil {
		p.PreferredNewsCategories = []string{}
	}
	if p.PreferredNewsKeywords == nil {
		p.PreferredNewsKeywords = []string{}
	}
}
