package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/reelgate/reelgate/internal/domain/gate"
)

// Video is an externally hosted video link listed in the directory.
type Video struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// VideoPage is one page of a video listing.
type VideoPage struct {
	Items []Video `json:"items"`
	Page  int     `json:"page"`
	Total int     `json:"total"`
}

// Collection is a user's curated list of videos.
type Collection struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	VideoIDs []string `json:"videoIds"`
}

// DirectoryAPI is the client for browsing videos and managing collections.
// Every call goes through the gate chain.
type DirectoryAPI struct {
	transport gate.Transport
}

// NewDirectoryAPI creates a client sending through transport.
func NewDirectoryAPI(transport gate.Transport) *DirectoryAPI {
	return &DirectoryAPI{transport: transport}
}

// ListVideos returns a page of videos, optionally filtered by a search query.
func (d *DirectoryAPI) ListVideos(ctx context.Context, query string, page int) (*VideoPage, error) {
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	path := "/videos"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out VideoPage
	if err := doJSON(ctx, d.transport, &gate.Call{Method: http.MethodGet, Path: path}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetVideo returns a single video.
func (d *DirectoryAPI) GetVideo(ctx context.Context, id string) (*Video, error) {
	var out Video
	path := "/videos/" + url.PathEscape(id)
	if err := doJSON(ctx, d.transport, &gate.Call{Method: http.MethodGet, Path: path}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCollections returns the signed-in user's collections.
func (d *DirectoryAPI) ListCollections(ctx context.Context) ([]Collection, error) {
	var out []Collection
	if err := doJSON(ctx, d.transport, &gate.Call{Method: http.MethodGet, Path: "/collections"}, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddToCollection adds a video to one of the user's collections.
func (d *DirectoryAPI) AddToCollection(ctx context.Context, collectionID, videoID string) error {
	path := fmt.Sprintf("/collections/%s/videos", url.PathEscape(collectionID))
	in := struct {
		VideoID string `json:"videoId"`
	}{videoID}
	return doJSON(ctx, d.transport, &gate.Call{Method: http.MethodPost, Path: path}, in, nil)
}
