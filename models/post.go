package models

// Post is one forum thread as written to the snapshot file.
// The JSON field names are read by the feed renderer and must not change.
type Post struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	Images          []string  `json:"images"`
	CreatedAt       *string   `json:"created_at"`
	ChannelID       string    `json:"channel_id"`
	ChannelName     string    `json:"channel_name"`
	ChannelVerified bool      `json:"channel_verified"`
	ChannelAvatar   *string   `json:"channel_avatar"`
	Author          string    `json:"author"`
	AuthorTag       string    `json:"author_tag"`
	URL             *string   `json:"url"`
	Comments        []Comment `json:"comments"`
}

// Comment is a non-starter message of a thread.
type Comment struct {
	ID        string   `json:"id"`
	Author    string   `json:"author"`
	AuthorTag string   `json:"author_tag"`
	CreatedAt *string  `json:"created_at"`
	Content   string   `json:"content"`
	Images    []string `json:"images"`
}
