// internal/domain/models/bird.go
package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Bird is read-mostly species reference data.
type Bird struct {
	ID             primitive.ObjectID `bson:"_id" json:"id"`
	CommonName     string             `bson:"common_name" json:"common_name"`
	CommonNameCI   string             `bson:"common_name_ci" json:"-"`
	ScientificName string             `bson:"scientific_name" json:"scientific_name"`
	ImageURL       string             `bson:"image_url,omitempty" json:"image_url,omitempty"`
	Location       []float64          `bson:"location,omitempty" json:"location,omitempty"` // [lng, lat]
}

// Clone returns a deep copy of b.
func (b Bird) Clone() Bird {
	c := b
	if b.Location != nil {
		c.Location = append([]float64(nil), b.Location...)
	}
	return c
}
