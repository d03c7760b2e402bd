package models

type User struct {
	ID           string `bson:"_id,omitempty" json:"id"`
	Name         string `bson:"name" json:"name"`
	Email        string `bson:"email" json:"email"`
	ProfileImage string `bson:"profileImage,omitempty" json:"profileImage,omitempty"`
}
