package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"plant-market/internal/domain"
	"plant-market/internal/events"
	"plant-market/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Mock repositories for testing
type mockUserRepository struct {
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type mockBlacklist struct {
	tokens map[string]time.Time
}

func newMockBlacklist() *mockBlacklist {
	return &mockBlacklist{tokens: make(map[string]time.Time)}
}

func (m *mockBlacklist) Add(ctx context.Context, token string, expiresAt time.Time) error {
	m.tokens[token] = expiresAt
	return nil
}

func (m *mockBlacklist) Contains(ctx context.Context, token string) (bool, error) {
	_, ok := m.tokens[token]
	return ok, nil
}

type mockSellerRepository struct {
	sellers map[uuid.UUID]*domain.Seller
}

func newMockSellerRepository() *mockSellerRepository {
	return &mockSellerRepository{sellers: make(map[uuid.UUID]*domain.Seller)}
}

func (m *mockSellerRepository) Create(ctx context.Context, seller *domain.Seller) error {
	for _, s := range m.sellers {
		if s.UserID == seller.UserID {
			return repository.ErrSellerAlreadyExists
		}
	}
	m.sellers[seller.ID] = seller
	return nil
}

func (m *mockSellerRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Seller, error) {
	s, ok := m.sellers[id]
	if !ok {
		return nil, repository.ErrSellerNotFound
	}
	return s, nil
}

func (m *mockSellerRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Seller, error) {
	for _, s := range m.sellers {
		if s.UserID == userID {
			return s, nil
		}
	}
	return nil, repository.ErrSellerNotFound
}

func (m *mockSellerRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SellerStatus) (*domain.Seller, error) {
	s, ok := m.sellers[id]
	if !ok {
		return nil, repository.ErrSellerNotFound
	}
	s.Status = status
	return s, nil
}

func (m *mockSellerRepository) add(userID uuid.UUID, status domain.SellerStatus) *domain.Seller {
	s := &domain.Seller{ID: uuid.New(), UserID: userID, BusinessName: "Green Thumb", Status: status}
	m.sellers[s.ID] = s
	return s
}

type mockProductRepository struct {
	products map[uuid.UUID]*domain.Product
	inUse    map[uuid.UUID]bool
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{
		products: make(map[uuid.UUID]*domain.Product),
		inUse:    make(map[uuid.UUID]bool),
	}
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, id uuid.UUID, update domain.ProductUpdate) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	if update.Name != nil {
		p.Name = *update.Name
	}
	if update.Price != nil {
		p.Price = *update.Price
	}
	if update.Stock != nil {
		p.Stock = *update.Stock
	}
	return p, nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	if m.inUse[id] {
		return repository.ErrProductInUse
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return p, nil
}

func (m *mockProductRepository) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error) {
	out := []*domain.Product{}
	for _, p := range m.products {
		if filter.Category == "" || p.Category == filter.Category {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

// mockOrderRepository keeps orders and stock in memory and applies each
// operation under one lock, standing in for the database transaction
type mockOrderRepository struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]*domain.Order
	stock    map[uuid.UUID]int
	price    map[uuid.UUID]decimal.Decimal
	sellerOf map[uuid.UUID]uuid.UUID
	failWith error
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{
		orders:   make(map[uuid.UUID]*domain.Order),
		stock:    make(map[uuid.UUID]int),
		price:    make(map[uuid.UUID]decimal.Decimal),
		sellerOf: make(map[uuid.UUID]uuid.UUID),
	}
}

func (m *mockOrderRepository) addProduct(sellerID uuid.UUID, price string, stock int) uuid.UUID {
	id := uuid.New()
	m.stock[id] = stock
	m.price[id] = decimal.RequireFromString(price)
	m.sellerOf[id] = sellerID
	return id
}

func (m *mockOrderRepository) Place(ctx context.Context, in domain.PlaceOrderInput) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return nil, m.failWith
	}

	lines, err := domain.NormalizeLines(in.Items)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:              uuid.New(),
		UserID:          in.UserID,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		Status:          domain.OrderPending,
		Total:           decimal.Zero,
	}
	for _, l := range lines {
		available, ok := m.stock[l.ProductID]
		if !ok {
			return nil, &domain.NotFoundError{Resource: "product", ID: l.ProductID.String()}
		}
		if available < l.Quantity {
			return nil, &domain.InsufficientStockError{ProductID: l.ProductID.String(), Available: available, Requested: l.Quantity}
		}
		item := domain.OrderItem{
			OrderID:   order.ID,
			ProductID: l.ProductID,
			SellerID:  m.sellerOf[l.ProductID],
			Quantity:  l.Quantity,
			UnitPrice: m.price[l.ProductID],
		}
		order.Items = append(order.Items, item)
		order.Total = order.Total.Add(item.Subtotal())
	}
	for _, item := range order.Items {
		m.stock[item.ProductID] -= item.Quantity
	}
	order.Payment = &domain.Payment{ID: uuid.New(), OrderID: order.ID, Amount: order.Total, Method: in.PaymentMethod, Status: domain.PaymentPending}

	m.orders[order.ID] = order
	return order, nil
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "order", ID: id.String()}
	}
	return o, nil
}

func (m *mockOrderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []*domain.Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []*domain.Order{}
	for _, o := range m.orders {
		if o.HasSeller(sellerID) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderRepository) ListAll(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []*domain.Order{}
	for _, o := range m.orders {
		if filter.Status == nil || o.Status == *filter.Status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderRepository) Stats(ctx context.Context) (*domain.OrderStats, error) {
	return &domain.OrderStats{TotalOrders: len(m.orders), ByStatus: map[domain.OrderStatus]int{}}, nil
}

func (m *mockOrderRepository) Cancel(ctx context.Context, id uuid.UUID, policy repository.CancelPolicy) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "order", ID: id.String()}
	}
	if policy != nil {
		if err := policy(o); err != nil {
			return nil, err
		}
	}
	if !o.Status.CanCancel() {
		return nil, &domain.InvalidTransitionError{From: o.Status, To: domain.OrderCancelled}
	}
	o.Status = domain.OrderCancelled
	for _, item := range o.Items {
		m.stock[item.ProductID] += item.Quantity
	}
	return o, nil
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "order", ID: id.String()}
	}
	if !o.Status.CanAdvanceTo(status) {
		return nil, &domain.InvalidTransitionError{From: o.Status, To: status}
	}
	o.Status = status
	return o, nil
}

func (m *mockOrderRepository) UpdateAdminNotes(ctx context.Context, id uuid.UUID, notes string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "order", ID: id.String()}
	}
	o.AdminNotes = notes
	return o, nil
}

func (m *mockOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[id]; !ok {
		return &domain.NotFoundError{Resource: "order", ID: id.String()}
	}
	delete(m.orders, id)
	return nil
}

func (m *mockOrderRepository) ListSellerPayments(ctx context.Context, sellerID uuid.UUID) ([]*domain.SellerPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []*domain.SellerPayment{}
	for _, o := range m.orders {
		if o.HasSeller(sellerID) && o.Payment != nil {
			out = append(out, &domain.SellerPayment{Payment: *o.Payment, UserID: o.UserID})
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Envelope
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, env)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type mockCategoryRepository struct {
	products *mockProductRepository
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	byName := map[string]*domain.Category{}
	for _, p := range m.products.products {
		if p.Category == "" {
			continue
		}
		c, ok := byName[p.Category]
		if !ok {
			c = &domain.Category{Name: p.Category}
			byName[p.Category] = c
		}
		c.ProductCount++
		if p.Stock > 0 {
			c.InStockCount++
		}
	}

	out := make([]*domain.Category, 0, len(byName))
	for _, c := range byName {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type mockRatingRepository struct {
	ratings map[uuid.UUID]*domain.Rating
}

func newMockRatingRepository() *mockRatingRepository {
	return &mockRatingRepository{ratings: make(map[uuid.UUID]*domain.Rating)}
}

func (m *mockRatingRepository) Upsert(ctx context.Context, rating *domain.Rating) (*domain.Rating, error) {
	for _, existing := range m.ratings {
		if existing.UserID == rating.UserID && existing.ProductID == rating.ProductID {
			existing.Score = rating.Score
			existing.Review = rating.Review
			existing.UpdatedAt = rating.UpdatedAt
			return existing, nil
		}
	}
	stored := *rating
	m.ratings[stored.ID] = &stored
	return &stored, nil
}

func (m *mockRatingRepository) Update(ctx context.Context, id uuid.UUID, score int, review string) (*domain.Rating, error) {
	r, ok := m.ratings[id]
	if !ok {
		return nil, repository.ErrRatingNotFound
	}
	r.Score = score
	r.Review = review
	return r, nil
}

func (m *mockRatingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.ratings[id]; !ok {
		return repository.ErrRatingNotFound
	}
	delete(m.ratings, id)
	return nil
}

func (m *mockRatingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Rating, error) {
	r, ok := m.ratings[id]
	if !ok {
		return nil, repository.ErrRatingNotFound
	}
	return r, nil
}

func (m *mockRatingRepository) FindByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*domain.Rating, error) {
	for _, r := range m.ratings {
		if r.UserID == userID && r.ProductID == productID {
			return r, nil
		}
	}
	return nil, repository.ErrRatingNotFound
}

func (m *mockRatingRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.Rating, error) {
	out := []*domain.Rating{}
	for _, r := range m.ratings {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRatingRepository) Stats(ctx context.Context, productID uuid.UUID) (*domain.RatingStats, error) {
	stats := domain.NewRatingStats(productID)
	for _, r := range m.ratings {
		if r.ProductID == productID {
			stats.Distribution[r.Score]++
			stats.TotalRatings++
		}
	}
	return stats, nil
}

type mockSubscriptionRepository struct {
	plans map[uuid.UUID]*domain.Plan
	subs  []*domain.Subscription
}

func newMockSubscriptionRepository() *mockSubscriptionRepository {
	return &mockSubscriptionRepository{plans: make(map[uuid.UUID]*domain.Plan)}
}

func (m *mockSubscriptionRepository) addPlan(name, price string, active bool) *domain.Plan {
	p := &domain.Plan{ID: uuid.New(), Name: name, Price: decimal.RequireFromString(price), IsActive: active}
	m.plans[p.ID] = p
	return p
}

func (m *mockSubscriptionRepository) CreatePlan(ctx context.Context, plan *domain.Plan) error {
	for _, p := range m.plans {
		if p.Name == plan.Name {
			return repository.ErrPlanAlreadyExists
		}
	}
	m.plans[plan.ID] = plan
	return nil
}

func (m *mockSubscriptionRepository) FindPlan(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	p, ok := m.plans[id]
	if !ok {
		return nil, repository.ErrPlanNotFound
	}
	return p, nil
}

func (m *mockSubscriptionRepository) ListPlans(ctx context.Context, activeOnly bool) ([]*domain.Plan, error) {
	out := []*domain.Plan{}
	for _, p := range m.plans {
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	return out, nil
}

func (m *mockSubscriptionRepository) PlanStats(ctx context.Context) ([]*domain.PlanStats, error) {
	return []*domain.PlanStats{}, nil
}

func (m *mockSubscriptionRepository) active(userID uuid.UUID) *domain.Subscription {
	for _, s := range m.subs {
		if s.UserID == userID && s.Status == domain.SubscriptionActive {
			return s
		}
	}
	return nil
}

func (m *mockSubscriptionRepository) Subscribe(ctx context.Context, userID uuid.UUID, plan *domain.Plan, now time.Time) (*domain.Subscription, error) {
	if current := m.active(userID); current != nil {
		if current.PlanID == plan.ID {
			return nil, repository.ErrAlreadySubscribed
		}
		current.Status = domain.SubscriptionCanceled
	}

	sub := &domain.Subscription{
		ID:                 uuid.New(),
		UserID:             userID,
		PlanID:             plan.ID,
		PlanName:           plan.Name,
		Price:              plan.Price,
		Status:             domain.SubscriptionActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, domain.SubscriptionPeriod, 0),
	}
	m.subs = append(m.subs, sub)
	return sub, nil
}

func (m *mockSubscriptionRepository) Cancel(ctx context.Context, userID uuid.UUID) error {
	current := m.active(userID)
	if current == nil {
		return repository.ErrSubscriptionNotFound
	}
	current.Status = domain.SubscriptionCanceled
	return nil
}

func (m *mockSubscriptionRepository) Current(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	if current := m.active(userID); current != nil {
		return current, nil
	}
	return nil, repository.ErrSubscriptionNotFound
}

func (m *mockSubscriptionRepository) History(ctx context.Context, userID uuid.UUID) ([]*domain.Subscription, error) {
	out := []*domain.Subscription{}
	for i := len(m.subs) - 1; i >= 0; i-- {
		if m.subs[i].UserID == userID {
			out = append(out, m.subs[i])
		}
	}
	return out, nil
}

type mockBlogRepository struct {
	blogs    map[uuid.UUID]*domain.Blog
	comments []*domain.Comment
}

func newMockBlogRepository() *mockBlogRepository {
	return &mockBlogRepository{blogs: make(map[uuid.UUID]*domain.Blog)}
}

func (m *mockBlogRepository) Create(ctx context.Context, blog *domain.Blog) error {
	for _, b := range m.blogs {
		if b.Slug == blog.Slug {
			return repository.ErrBlogSlugTaken
		}
	}
	m.blogs[blog.ID] = blog
	return nil
}

func (m *mockBlogRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Blog, error) {
	b, ok := m.blogs[id]
	if !ok {
		return nil, repository.ErrBlogNotFound
	}
	return b, nil
}

func (m *mockBlogRepository) FindBySlug(ctx context.Context, slug string) (*domain.Blog, error) {
	for _, b := range m.blogs {
		if b.Slug == slug {
			return b, nil
		}
	}
	return nil, repository.ErrBlogNotFound
}

func (m *mockBlogRepository) List(ctx context.Context, filter domain.BlogFilter) ([]*domain.Blog, error) {
	out := []*domain.Blog{}
	for _, b := range m.blogs {
		if filter.Category != "" && b.Category != filter.Category {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (m *mockBlogRepository) AddComment(ctx context.Context, comment *domain.Comment) error {
	if _, ok := m.blogs[comment.BlogID]; !ok {
		return repository.ErrBlogNotFound
	}
	m.comments = append(m.comments, comment)
	return nil
}

func (m *mockBlogRepository) ListComments(ctx context.Context, blogID uuid.UUID) ([]*domain.Comment, error) {
	out := []*domain.Comment{}
	for _, c := range m.comments {
		if c.BlogID == blogID {
			out = append(out, c)
		}
	}
	return out, nil
}
