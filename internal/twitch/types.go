package twitch

// Stream is one entry of the Helix streams listing.
type Stream struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	UserLogin   string `json:"user_login"`
	UserName    string `json:"user_name"`
	GameID      string `json:"game_id"`
	GameName    string `json:"game_name"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	ViewerCount int64  `json:"viewer_count"`
	Language    string `json:"language"`
	IsMature    bool   `json:"is_mature"`
}

type pagination struct {
	Cursor string `json:"cursor"`
}

type streamsResponse struct {
	Data       []Stream   `json:"data"`
	Pagination pagination `json:"pagination"`
}

// StreamsQuery selects streams from the directory.
type StreamsQuery struct {
	GameID   string
	Language string
	First    int
	After    string
}
