package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/dstarenko/storebot/internal/models"
	"github.com/dstarenko/storebot/pkg/crypto"
)

const (
	defaultReferralMaxDepth = 10
	defaultManagerDepth     = 5
	defaultCodeLength       = 8
	defaultCodeAttempts     = 5
)

// ReferralOption customises ReferralService behaviour.
type ReferralOption func(*ReferralService)

// WithReferralMaxDepth overrides the default subtree depth bound.
func WithReferralMaxDepth(depth int) ReferralOption {
	return func(s *ReferralService) {
		if depth > 0 {
			s.maxDepth = depth
		}
	}
}

// WithManagerReportDepth overrides the default depth for manager-rooted reports.
func WithManagerReportDepth(depth int) ReferralOption {
	return func(s *ReferralService) {
		if depth > 0 {
			s.managerDepth = depth
		}
	}
}

// WithReferralCodeLength adjusts the generated code length.
func WithReferralCodeLength(length int) ReferralOption {
	return func(s *ReferralService) {
		if length > 0 {
			s.codeLength = length
		}
	}
}

// WithCodeGenerator injects a custom code generator, primarily for testing.
func WithCodeGenerator(gen func(int) (string, error)) ReferralOption {
	return func(s *ReferralService) {
		if gen != nil {
			s.generate = gen
		}
	}
}

// ReferralNode is one user in a downward referral expansion, with aggregates
// computed directly from that user's orders.
type ReferralNode struct {
	User          models.User     `json:"user"`
	OrderCount    int64           `json:"order_count"`
	RevenueAmount int64           `json:"revenue_amount"`
	Children      []*ReferralNode `json:"children,omitempty"`
}

// SubtreeReport carries a referral subtree and its rollup totals.
//
// Totals are sums over all visited nodes, each user counted once by the
// visited-set. On forest-shaped data this is exact; if the relation is ever
// corrupted into a shared-ancestor graph the totals reflect reachable users,
// not the distinct downline of the root.
type SubtreeReport struct {
	Root         *ReferralNode `json:"root"`
	TotalUsers   int64         `json:"total_users"`
	TotalOrders  int64         `json:"total_orders"`
	TotalRevenue int64         `json:"total_revenue"`
	MaxDepth     int           `json:"max_depth"`
}

// ReferralService answers read-side questions about the referral graph and
// mints referral codes. The referredById relation is intended to be a forest
// but is treated as a general graph: both traversals carry a visited-set and
// the downward one additionally enforces a depth bound.
type ReferralService struct {
	db           *gorm.DB
	maxDepth     int
	managerDepth int
	codeLength   int
	attempts     int
	generate     func(int) (string, error)
}

// NewReferralService constructs a ReferralService.
func NewReferralService(db *gorm.DB, opts ...ReferralOption) (*ReferralService, error) {
	if db == nil {
		return nil, errors.New("referral service: db is required")
	}

	service := &ReferralService{
		db:           db,
		maxDepth:     defaultReferralMaxDepth,
		managerDepth: defaultManagerDepth,
		codeLength:   defaultCodeLength,
		attempts:     defaultCodeAttempts,
		generate:     crypto.GenerateReferralCode,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// AncestorChain walks referredById upward from the user and returns the chain
// ordered root first, the user itself last. The walk keeps a visited-set and
// stops silently the moment an id repeats, so it terminates on any graph in at
// most one step per distinct user. A dangling referrer id also ends the walk.
func (s *ReferralService) AncestorChain(ctx context.Context, userID string) ([]models.User, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	chain := []models.User{*user}
	visited := map[string]struct{}{user.ID: {}}

	next := user.ReferredByID
	for next != nil {
		if _, seen := visited[*next]; seen {
			break
		}

		parent, err := s.loadUser(ctx, *next)
		if errors.Is(err, ErrUserNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}

		visited[parent.ID] = struct{}{}
		chain = append(chain, *parent)
		next = parent.ReferredByID
	}

	// Collected self-upward; callers expect root…self.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	return chain, nil
}

// Subtree expands the referral tree below rootID up to maxDepth levels,
// attaching per-user order counts and revenue sums and accumulating rollup
// totals over every visited node. When maxDepth <= 0 the service default
// applies, which is shallower for manager-rooted reports because a manager
// sits above the whole customer forest.
func (s *ReferralService) Subtree(ctx context.Context, rootID string, maxDepth int) (*SubtreeReport, error) {
	root, err := s.loadUser(ctx, rootID)
	if err != nil {
		return nil, err
	}

	if maxDepth <= 0 {
		if root.IsManager {
			maxDepth = s.managerDepth
		} else {
			maxDepth = s.maxDepth
		}
	}

	report := &SubtreeReport{}
	visited := map[string]struct{}{root.ID: {}}

	node, err := s.expand(ctx, *root, 0, maxDepth, visited, report)
	if err != nil {
		return nil, err
	}

	report.Root = node
	return report, nil
}

func (s *ReferralService) expand(ctx context.Context, user models.User, depth, maxDepth int, visited map[string]struct{}, report *SubtreeReport) (*ReferralNode, error) {
	node := &ReferralNode{User: user}

	count, revenue, err := s.orderTotals(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	node.OrderCount = count
	node.RevenueAmount = revenue

	report.TotalUsers++
	report.TotalOrders += count
	report.TotalRevenue += revenue
	if depth > report.MaxDepth {
		report.MaxDepth = depth
	}

	// The depth bound is always enforced, independent of the visited-set.
	if depth >= maxDepth {
		return node, nil
	}

	var children []models.User
	if err := s.db.WithContext(ctx).
		Where("referred_by_id = ?", user.ID).
		Order("created_at").
		Find(&children).Error; err != nil {
		return nil, fmt.Errorf("referral service: load children: %w", err)
	}

	for _, child := range children {
		if _, seen := visited[child.ID]; seen {
			continue
		}
		visited[child.ID] = struct{}{}

		childNode, err := s.expand(ctx, child, depth+1, maxDepth, visited, report)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, childNode)
	}

	return node, nil
}

// GenerateCode mints a unique referral code for the owner, retrying a bounded
// number of times when the random code collides with an existing one.
func (s *ReferralService) GenerateCode(ctx context.Context, ownerID string, maxUses int) (*models.ReferralCode, error) {
	if _, err := s.loadUser(ctx, ownerID); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < s.attempts; attempt++ {
		value, err := s.generate(s.codeLength)
		if err != nil {
			return nil, fmt.Errorf("referral service: generate code: %w", err)
		}

		code := models.ReferralCode{
			Code:     value,
			OwnerID:  ownerID,
			MaxUses:  maxUses,
			IsActive: true,
		}
		if err := s.db.WithContext(ctx).Create(&code).Error; err != nil {
			if isUniqueConstraintError(err) {
				continue
			}
			return nil, fmt.Errorf("referral service: create code: %w", err)
		}
		return &code, nil
	}

	return nil, ErrReferralCodeConflict
}

func (s *ReferralService) loadUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("referral service: user %s: %w", userID, ErrUserNotFound)
		}
		return nil, fmt.Errorf("referral service: load user: %w", err)
	}
	return &user, nil
}

func (s *ReferralService) orderTotals(ctx context.Context, userID string) (int64, int64, error) {
	var totals struct {
		Count   int64
		Revenue int64
	}
	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Select("COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS revenue").
		Where("user_id = ? AND status <> ?", userID, models.OrderStatusCancelled).
		Scan(&totals).Error
	if err != nil {
		return 0, 0, fmt.Errorf("referral service: order totals: %w", err)
	}
	return totals.Count, totals.Revenue, nil
}
