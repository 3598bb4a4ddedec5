package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/SocialSync/internal/model"
	"github.com/Gopher0727/SocialSync/internal/store"
)

// ICircleRepository defines the interface for circle and membership data operations
type ICircleRepository interface {
	Create(ctx context.Context, circle *model.Circle) error
	FindByID(ctx context.Context, id string) (*model.Circle, error)
	FindByInviteCode(ctx context.Context, code string) (*model.Circle, error)
	InviteCodeExists(ctx context.Context, code string) (bool, error)
	InviteCodes(ctx context.Context) ([]string, error)
	AddMember(ctx context.Context, groupID, userID string) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Circle, error)
	Members(ctx context.Context, groupID string) ([]*model.Profile, error)
	MemberCount(ctx context.Context, groupID string) (int64, error)
	Delete(ctx context.Context, groupID string) error
}

type CircleRepository struct {
	db *gorm.DB
}

func NewCircleRepository(db *gorm.DB) ICircleRepository {
	return &CircleRepository{db: db}
}

func (r *CircleRepository) Create(ctx context.Context, circle *model.Circle) error {
	return store.Translate("circle.create", r.db.WithContext(ctx).Create(circle).Error)
}

func (r *CircleRepository) FindByID(ctx context.Context, id string) (*model.Circle, error) {
	var circle model.Circle
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&circle).Error; err != nil {
		return nil, store.Translate("circle.find", err)
	}
	return &circle, nil
}

func (r *CircleRepository) FindByInviteCode(ctx context.Context, code string) (*model.Circle, error) {
	var circle model.Circle
	if err := r.db.WithContext(ctx).Where("invite_code = ?", code).First(&circle).Error; err != nil {
		return nil, store.Translate("circle.find_by_code", err)
	}
	return &circle, nil
}

func (r *CircleRepository) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Circle{}).Where("invite_code = ?", code).Count(&count).Error; err != nil {
		return false, store.Translate("circle.code_exists", err)
	}
	return count > 0, nil
}

// InviteCodes 启动时用于预热布隆过滤器
func (r *CircleRepository) InviteCodes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := r.db.WithContext(ctx).Model(&model.Circle{}).Pluck("invite_code", &codes).Error; err != nil {
		return nil, store.Translate("circle.invite_codes", err)
	}
	return codes, nil
}

// AddMember 重复加入触发唯一索引，返回 AlreadyExists
func (r *CircleRepository) AddMember(ctx context.Context, groupID, userID string) error {
	member := &model.Membership{GroupID: groupID, UserID: userID}
	return store.Translate("circle.add_member", r.db.WithContext(ctx).Create(member).Error)
}

func (r *CircleRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	res := r.db.WithContext(ctx).Where("group_id = ? AND user_id = ?", groupID, userID).Delete(&model.Membership{})
	if res.Error != nil {
		return store.Translate("circle.remove_member", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.Translate("circle.remove_member", gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *CircleRepository) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Membership{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	if err != nil {
		return false, store.Translate("circle.is_member", err)
	}
	return count > 0, nil
}

// ListByUser 按加入时间升序
func (r *CircleRepository) ListByUser(ctx context.Context, userID string) ([]*model.Circle, error) {
	var circles []*model.Circle
	err := r.db.WithContext(ctx).
		Table("circles").
		Select("circles.*").
		Joins("JOIN circle_members ON circles.id = circle_members.group_id").
		Where("circle_members.user_id = ?", userID).
		Order("circle_members.joined_at ASC, circles.name ASC").
		Find(&circles).Error
	if err != nil {
		return nil, store.Translate("circle.list", err)
	}
	return circles, nil
}

func (r *CircleRepository) Members(ctx context.Context, groupID string) ([]*model.Profile, error) {
	var profiles []*model.Profile
	err := r.db.WithContext(ctx).
		Table("profiles").
		Select("profiles.*").
		Joins("JOIN circle_members ON profiles.id = circle_members.user_id").
		Where("circle_members.group_id = ?", groupID).
		Order("circle_members.joined_at ASC, profiles.name ASC").
		Find(&profiles).Error
	if err != nil {
		return nil, store.Translate("circle.members", err)
	}
	return profiles, nil
}

func (r *CircleRepository) MemberCount(ctx context.Context, groupID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Membership{}).Where("group_id = ?", groupID).Count(&count).Error; err != nil {
		return 0, store.Translate("circle.member_count", err)
	}
	return count, nil
}

// Delete 删除圈子及其成员关系、聚会和聚会下的所有子记录。应在事务中调用。
func (r *CircleRepository) Delete(ctx context.Context, groupID string) error {
	db := r.db.WithContext(ctx)
	meetingIDs := db.Model(&model.Meeting{}).Select("id").Where("group_id = ?", groupID)

	for _, child := range []any{&model.Participant{}, &model.MeetingMedia{}, &model.Comment{}, &model.Reaction{}} {
		if err := db.Where("meeting_id IN (?)", meetingIDs).Delete(child).Error; err != nil {
			return store.Translate("circle.delete", err)
		}
	}
	if err := db.Where("group_id = ?", groupID).Delete(&model.Meeting{}).Error; err != nil {
		return store.Translate("circle.delete", err)
	}
	if err := db.Where("group_id = ?", groupID).Delete(&model.Membership{}).Error; err != nil {
		return store.Translate("circle.delete", err)
	}
	res := db.Where("id = ?", groupID).Delete(&model.Circle{})
	if res.Error != nil {
		return store.Translate("circle.delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.Translate("circle.delete", gorm.ErrRecordNotFound)
	}
	return nil
}
