package types

import (
	"time"
)

type User struct {
	Id        int       `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

type Room struct {
	Id           int       `json:"id"`
	Name         string    `json:"name"`
	CreatorId    int       `json:"creator"`
	Participants []int     `json:"participants"`
	CreatedAt    time.Time `json:"time_created"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type File struct {
	Id        int       `json:"id"`
	Name      string    `json:"name"`
	Hash      string    `json:"hash"`
	Url       string    `json:"url"`
	OwnerId   int       `json:"owner"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type Message struct {
	Id        int       `json:"id"`
	Content   string    `json:"content"`
	File      *File     `json:"file"`
	RoomId    int       `json:"room"`
	Sender    string    `json:"sender"`
	SenderId  int       `json:"sender_id"`
	Location  *Location `json:"location"`
	Timestamp time.Time `json:"time"`
}
