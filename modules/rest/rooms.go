package rest

import (
	"context"
	"net/url"
	"strings"
	"time"
)

type roomsResponse struct {
	Rooms []Room `json:"rooms"`
}

type Room struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Building    string `json:"building"`
	Status      string `json:"status"`
	Capacity    int    `json:"capacity"`
}

// Available reports whether the room is free in the queried window.
func (r Room) Available() bool {
	return strings.EqualFold(r.Status, "available")
}

// AvailableRooms lists rooms with their occupancy status over the window.
// The result keeps occupied rooms too; callers filter with Available.
func (c *Client) AvailableRooms(ctx context.Context, start, end time.Time) ([]Room, error) {
	query := url.Values{
		"start": {DateParam(start)},
		"end":   {DateParam(end)},
	}
	var resp roomsResponse
	if err := c.get(ctx, "/view/v1/rooms", query, &resp); err != nil {
		return nil, err
	}

	return resp.Rooms, nil
}
