package contact

import "time"

// Message models a contact form submission awaiting admin review.
type Message struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;size:190;not null"`
	Email     string    `gorm:"column:email;size:320;not null;index"`
	Subject   string    `gorm:"column:subject;size:320"`
	Body      string    `gorm:"column:message;type:text;not null"`
	IsRead    bool      `gorm:"column:is_read;not null;default:false;index:idx_contact_read_created,priority:1"`
	HasReply  bool      `gorm:"column:has_reply;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index:idx_contact_read_created,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Message) TableName() string {
	return "contact_messages"
}

// Reply captures an admin reply sent for a contact message.
type Reply struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ContactID int64     `gorm:"column:contact_id;not null;index"`
	Body      string    `gorm:"column:body;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Reply) TableName() string {
	return "contact_replies"
}
