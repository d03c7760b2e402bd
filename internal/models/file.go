package models

type File struct {
	ID           string `bson:"_id,omitempty" json:"id"`
	Filename     string `bson:"filename" json:"filename"`
	OriginalName string `bson:"originalname" json:"originalname"`
	MimeType     string `bson:"mimetype" json:"mimetype"`
	Size         int64  `bson:"size" json:"size"`
}
