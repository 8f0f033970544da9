package database

import "time"

type User struct {
	Id           int
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Token struct {
	Key       string
	AccountId int
	CreatedAt time.Time
}

type Room struct {
	Id           int
	Name         string
	CreatorId    int
	Participants []int
	CreatedAt    time.Time
}

type Location struct {
	Id        int
	Latitude  float64
	Longitude float64
}

type File struct {
	Id        int
	Name      string
	Hash      string
	Url       string
	OwnerId   int
	CreatedAt time.Time
}

type Message struct {
	Id         int
	Content    string
	FileId     *int
	RoomId     *int
	SenderId   int
	LocationId *int
	CreatedAt  time.Time
}

// MessageWithRefs is a message row with its referenced entities resolved,
// as needed when shaping wire records.
type MessageWithRefs struct {
	Message
	SenderName string
	RoomName   string
	File       *File
	Location   *Location
}

type CreateAccountParams struct {
	Username     string
	Email        string
	PasswordHash string
}

type CreateRoomParams struct {
	Name         string
	CreatorId    int
	Participants []int
}

type CreateMessageParams struct {
	Content    string
	FileId     *int
	RoomId     *int
	SenderId   int
	LocationId *int
}

type CreateFileParams struct {
	Name    string
	Hash    string
	Url     string
	OwnerId int
}
