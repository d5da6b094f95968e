package domain

import "time"

type User struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	Name         string       `gorm:"size:255;not null" json:"name"`
	Email        string       `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string       `gorm:"size:1024;not null" json:"-"`
	Role         Role         `gorm:"size:32;not null;default:user;index:idx_users_role" json:"role"`
	IsVerified   bool         `gorm:"not null;default:false" json:"is_verified"`
	Avatar       Avatar       `gorm:"embedded;embeddedPrefix:avatar_" json:"avatar"`
	Courses      []UserCourse `gorm:"constraint:OnDelete:CASCADE" json:"courses"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Avatar references an object in the avatar store.
type Avatar struct {
	PublicID string `gorm:"size:512" json:"public_id"`
	URL      string `gorm:"size:1024" json:"url"`
}

type UserCourse struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_courses_user_course" json:"-"`
	CourseID  string    `gorm:"size:64;not null;uniqueIndex:idx_user_courses_user_course" json:"course_id"`
	CreatedAt time.Time `json:"-"`
}

// HasCourse reports whether the user is enrolled in courseID.
func (u *User) HasCourse(courseID string) bool {
	for _, c := range u.Courses {
		if c.CourseID == courseID {
			return true
		}
	}
	return false
}
