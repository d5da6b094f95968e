package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sandeepkv93/course-identity-service/internal/domain"
	"github.com/sandeepkv93/course-identity-service/internal/observability"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id uint) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, req PageRequest) (PageResult[domain.User], error)
	AddCourse(ctx context.Context, userID uint, courseID string) error
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			observability.RecordRepositoryOperation(ctx, "user", "create", "conflict")
			return ErrDuplicateEmail
		}
		observability.RecordRepositoryOperation(ctx, "user", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "user", "create", "success")
	return nil
}

func (r *GormUserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Preload("Courses").First(&u, id).Error
	return r.found(ctx, "find_by_id", &u, err)
}

func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Preload("Courses").Where("email = ?", email).First(&u).Error
	return r.found(ctx, "find_by_email", &u, err)
}

func (r *GormUserRepository) found(ctx context.Context, op string, u *domain.User, err error) (*domain.User, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "user", op, "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(ctx, "user", op, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "user", op, "success")
	return u, nil
}

// Update writes the scalar columns of user. Courses are managed through AddCourse.
func (r *GormUserRepository) Update(ctx context.Context, user *domain.User) error {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", user.ID).Updates(map[string]any{
		"name":             user.Name,
		"email":            user.Email,
		"password_hash":    user.PasswordHash,
		"role":             user.Role,
		"is_verified":      user.IsVerified,
		"avatar_public_id": user.Avatar.PublicID,
		"avatar_url":       user.Avatar.URL,
		"updated_at":       now,
	})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			observability.RecordRepositoryOperation(ctx, "user", "update", "conflict")
			return ErrDuplicateEmail
		}
		observability.RecordRepositoryOperation(ctx, "user", "update", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "user", "update", "not_found")
		return ErrUserNotFound
	}
	user.UpdatedAt = now
	observability.RecordRepositoryOperation(ctx, "user", "update", "success")
	return nil
}

func (r *GormUserRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&domain.UserCourse{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&domain.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return nil
	})
	switch {
	case errors.Is(err, ErrUserNotFound):
		observability.RecordRepositoryOperation(ctx, "user", "delete", "not_found")
	case err != nil:
		observability.RecordRepositoryOperation(ctx, "user", "delete", "error")
	default:
		observability.RecordRepositoryOperation(ctx, "user", "delete", "success")
	}
	return err
}

func (r *GormUserRepository) List(ctx context.Context, req PageRequest) (PageResult[domain.User], error) {
	req = req.Normalized()
	db := r.db.WithContext(ctx)

	var total int64
	if err := db.Model(&domain.User{}).Count(&total).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "user", "list", "error")
		return PageResult[domain.User]{}, err
	}
	var users []domain.User
	if err := db.Preload("Courses").Order("created_at desc, id desc").Offset(req.Offset()).Limit(req.PageSize).Find(&users).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "user", "list", "error")
		return PageResult[domain.User]{}, err
	}
	observability.RecordRepositoryOperation(ctx, "user", "list", "success")
	return newPageResult(req, users, total), nil
}

// AddCourse enrolls the user in courseID. Enrolling twice is a no-op.
func (r *GormUserRepository) AddCourse(ctx context.Context, userID uint, courseID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrUserNotFound
		}
		enrollment := domain.UserCourse{UserID: userID, CourseID: courseID}
		return tx.Where("user_id = ? AND course_id = ?", userID, courseID).FirstOrCreate(&enrollment).Error
	})
	switch {
	case errors.Is(err, ErrUserNotFound):
		observability.RecordRepositoryOperation(ctx, "user", "add_course", "not_found")
	case err != nil:
		observability.RecordRepositoryOperation(ctx, "user", "add_course", "error")
	default:
		observability.RecordRepositoryOperation(ctx, "user", "add_course", "success")
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
