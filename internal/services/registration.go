package services

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"

	"bigpartner/internal/config"
	"bigpartner/internal/domain"
	"bigpartner/internal/listing"
	"bigpartner/internal/metrics"
	"bigpartner/internal/util"
	apperrors "bigpartner/pkg/errors"
)

// Registration kinds
const (
	KindInvestor = "investor"
	KindPartner  = "partner"
)

// WizardSteps is the number of steps in both registration wizards
const WizardSteps = 4

// InvestorInput is the investor registration wizard payload
type InvestorInput struct {
	// Step 1: contact
	FullName string  `json:"fullName" validate:"required,min=2,max=150"`
	Email    string  `json:"email" validate:"required,email,max=150"`
	Phone    string  `json:"phone" validate:"required,min=7,max=20"`
	City     string  `json:"city" validate:"required,max=100"`
	State    string  `json:"state" validate:"max=100"`
	Password *string `json:"password" validate:"omitempty,min=8,max=72"`

	// Step 2: investment profile
	InvestorType      string  `json:"investorType" validate:"required,oneof=individual institutional nri"`
	BudgetMin         *Number `json:"budgetMin" validate:"omitempty,gte=0"`
	BudgetMax         *Number `json:"budgetMax" validate:"omitempty,gte=0"`
	InvestmentHorizon string  `json:"investmentHorizon" validate:"max=30"`

	// Step 3: preferences
	PropertyTypes      TextList `json:"propertyTypes" validate:"min=1,max=20,dive,max=50"`
	PreferredLocations TextList `json:"preferredLocations" validate:"min=1,max=30,dive,max=100"`

	// Step 4: KYC
	PanNumber    *string `json:"panNumber" validate:"omitempty,len=10,alphanum"`
	AadharNumber *string `json:"aadharNumber" validate:"omitempty,len=12,numeric"`
	Occupation   string  `json:"occupation" validate:"max=100"`
	AnnualIncome string  `json:"annualIncome" validate:"max=50"`
	AcceptTerms  bool    `json:"acceptTerms" validate:"required"`
}

var investorSteps = map[int][]string{
	1: {"FullName", "Email", "Phone", "City", "State", "Password"},
	2: {"InvestorType", "BudgetMin", "BudgetMax", "InvestmentHorizon"},
	3: {"PropertyTypes", "PreferredLocations"},
	4: {"PanNumber", "AadharNumber", "Occupation", "AnnualIncome", "AcceptTerms"},
}

func (in *InvestorInput) normalize() {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.City = strings.TrimSpace(in.City)
	in.State = strings.TrimSpace(in.State)
	in.InvestorType = strings.ToLower(strings.TrimSpace(in.InvestorType))
	in.InvestmentHorizon = strings.TrimSpace(in.InvestmentHorizon)
	in.Occupation = strings.TrimSpace(in.Occupation)
	in.AnnualIncome = strings.TrimSpace(in.AnnualIncome)
	in.PanNumber = trimPtr(in.PanNumber)
	if in.PanNumber != nil {
		upper := strings.ToUpper(*in.PanNumber)
		in.PanNumber = &upper
	}
	in.AadharNumber = trimPtr(in.AadharNumber)
	if in.AadharNumber != nil {
		digits := strings.ReplaceAll(*in.AadharNumber, " ", "")
		in.AadharNumber = &digits
	}
}

func (in *InvestorInput) check() map[string]string {
	if in.BudgetMin != nil && in.BudgetMax != nil && *in.BudgetMin > *in.BudgetMax {
		return map[string]string{"budgetMax": "must not be less than budgetMin"}
	}
	return nil
}

// PartnerInput is the partner registration wizard payload
type PartnerInput struct {
	// Step 1: contact
	FullName string  `json:"fullName" validate:"required,min=2,max=150"`
	Email    string  `json:"email" validate:"required,email,max=150"`
	Phone    string  `json:"phone" validate:"required,min=7,max=20"`
	City     string  `json:"city" validate:"required,max=100"`
	State    string  `json:"state" validate:"max=100"`
	Password *string `json:"password" validate:"omitempty,min=8,max=72"`

	// Step 2: company
	CompanyName               string  `json:"companyName" validate:"required,max=200"`
	CompanyRegistrationNumber *string `json:"companyRegistrationNumber" validate:"omitempty,max=50"`
	GstNumber                 *string `json:"gstNumber" validate:"omitempty,len=15,alphanum"`
	ReraNumber                *string `json:"reraNumber" validate:"omitempty,max=50"`
	YearsOfExperience         *Number `json:"yearsOfExperience" validate:"omitempty,gte=0,lte=100"`
	Website                   string  `json:"website" validate:"omitempty,url,max=255"`

	// Step 3: coverage
	Specializations TextList `json:"specializations" validate:"min=1,max=20,dive,max=50"`
	OperatingCities TextList `json:"operatingCities" validate:"min=1,max=50,dive,max=100"`

	// Step 4: plan
	SubscriptionPlan string `json:"subscriptionPlan" validate:"omitempty,oneof=basic premium enterprise"`
	AcceptTerms      bool   `json:"acceptTerms" validate:"required"`
}

var partnerSteps = map[int][]string{
	1: {"FullName", "Email", "Phone", "City", "State", "Password"},
	2: {"CompanyName", "CompanyRegistrationNumber", "GstNumber", "ReraNumber", "YearsOfExperience", "Website"},
	3: {"Specializations", "OperatingCities"},
	4: {"SubscriptionPlan", "AcceptTerms"},
}

func (in *PartnerInput) normalize() {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.City = strings.TrimSpace(in.City)
	in.State = strings.TrimSpace(in.State)
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.CompanyRegistrationNumber = trimPtr(in.CompanyRegistrationNumber)
	in.GstNumber = trimPtr(in.GstNumber)
	if in.GstNumber != nil {
		upper := strings.ToUpper(*in.GstNumber)
		in.GstNumber = &upper
	}
	in.ReraNumber = trimPtr(in.ReraNumber)
	in.Website = strings.TrimSpace(in.Website)
	in.SubscriptionPlan = strings.ToLower(strings.TrimSpace(in.SubscriptionPlan))
}

// StepResult reports the outcome of validating one wizard step
type StepResult struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors"`
}

// RegistrationService handles investor and partner registration and review
type RegistrationService struct {
	db       *gorm.DB
	notifier *Notifier
	limits   config.ListingConfig
	now      func() time.Time
}

// NewRegistrationService creates a new registration service
func NewRegistrationService(db *gorm.DB, notifier *Notifier, limits config.ListingConfig) *RegistrationService {
	return &RegistrationService{
		db:       db,
		notifier: notifier,
		limits:   limits,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ValidateInvestorStep validates only the fields of one wizard step
func (s *RegistrationService) ValidateInvestorStep(step int, in *InvestorInput) (*StepResult, error) {
	fields, ok := investorSteps[step]
	if !ok {
		return nil, apperrors.BadRequest(fmt.Sprintf("step must be between 1 and %d", WizardSteps))
	}
	in.normalize()
	res := stepResult(validate.StructPartial(in, fields...))
	if step == 2 {
		mergeFields(res, in.check())
	}
	return res, nil
}

// ValidatePartnerStep validates only the fields of one wizard step
func (s *RegistrationService) ValidatePartnerStep(step int, in *PartnerInput) (*StepResult, error) {
	fields, ok := partnerSteps[step]
	if !ok {
		return nil, apperrors.BadRequest(fmt.Sprintf("step must be between 1 and %d", WizardSteps))
	}
	in.normalize()
	return stepResult(validate.StructPartial(in, fields...)), nil
}

func stepResult(err error) *StepResult {
	res := &StepResult{Valid: true, Errors: map[string]string{}}
	if err == nil {
		return res
	}
	if ve, ok := validationError(err).(*apperrors.AppError); ok && ve.Fields != nil {
		mergeFields(res, ve.Fields)
		return res
	}
	mergeFields(res, map[string]string{"_": err.Error()})
	return res
}

func mergeFields(res *StepResult, fields map[string]string) {
	for k, v := range fields {
		res.Errors[k] = v
		res.Valid = false
	}
}

// RegisterInvestor validates the whole wizard and stores a pending investor
func (s *RegistrationService) RegisterInvestor(ctx context.Context, in *InvestorInput) (*domain.Investor, error) {
	in.normalize()
	log.Printf("[REGISTRATION] Investor request: email=%s, city=%s", in.Email, in.City)

	if err := validate.Struct(in); err != nil {
		log.Printf("[REGISTRATION] Investor failed: validation error: %v", err)
		return nil, validationError(err)
	}
	if fields := in.check(); fields != nil {
		return nil, apperrors.Validation("validation failed", fields)
	}

	actor, err := s.newActor(in.FullName, in.Email, in.Phone, in.City, in.State, in.Password)
	if err != nil {
		return nil, err
	}
	inv := domain.Investor{
		Actor:              actor,
		InvestorType:       in.InvestorType,
		BudgetMin:          in.BudgetMin.Float(),
		BudgetMax:          in.BudgetMax.Float(),
		PropertyTypes:      normalizeList(in.PropertyTypes),
		PreferredLocations: normalizeList(in.PreferredLocations),
		InvestmentHorizon:  in.InvestmentHorizon,
		PanNumber:          in.PanNumber,
		AadharNumber:       in.AadharNumber,
		Occupation:         in.Occupation,
		AnnualIncome:       in.AnnualIncome,
	}

	if err := s.create(ctx, &domain.Investor{}, in.Email, &inv); err != nil {
		log.Printf("[REGISTRATION] Investor failed: %v", err)
		return nil, err
	}

	log.Printf("[REGISTRATION] Investor successful: id=%d, email=%s", inv.ID, inv.Email)
	metrics.RecordRegistration(KindInvestor)
	s.notifier.InvestorRegistered(&inv)
	return &inv, nil
}

// RegisterPartner validates the whole wizard and stores a pending partner
func (s *RegistrationService) RegisterPartner(ctx context.Context, in *PartnerInput) (*domain.Partner, error) {
	in.normalize()
	log.Printf("[REGISTRATION] Partner request: email=%s, company=%s", in.Email, in.CompanyName)

	if err := validate.Struct(in); err != nil {
		log.Printf("[REGISTRATION] Partner failed: validation error: %v", err)
		return nil, validationError(err)
	}

	actor, err := s.newActor(in.FullName, in.Email, in.Phone, in.City, in.State, in.Password)
	if err != nil {
		return nil, err
	}
	p := domain.Partner{
		Actor:                     actor,
		CompanyName:               in.CompanyName,
		CompanyRegistrationNumber: in.CompanyRegistrationNumber,
		GstNumber:                 in.GstNumber,
		ReraNumber:                in.ReraNumber,
		YearsOfExperience:         in.YearsOfExperience.Int(),
		Specializations:           normalizeList(in.Specializations),
		OperatingCities:           normalizeList(in.OperatingCities),
		Website:                   in.Website,
		SubscriptionPlan:          in.SubscriptionPlan,
	}
	if p.SubscriptionPlan == "" {
		p.SubscriptionPlan = "basic"
	}

	if err := s.create(ctx, &domain.Partner{}, in.Email, &p); err != nil {
		log.Printf("[REGISTRATION] Partner failed: %v", err)
		return nil, err
	}

	log.Printf("[REGISTRATION] Partner successful: id=%d, company=%s", p.ID, p.CompanyName)
	metrics.RecordRegistration(KindPartner)
	s.notifier.PartnerRegistered(&p)
	return &p, nil
}

func (s *RegistrationService) newActor(name, email, phone, city, state string, password *string) (domain.Actor, error) {
	token := util.NewOpaqueToken()
	a := domain.Actor{
		FullName:               name,
		Email:                  email,
		Phone:                  phone,
		City:                   city,
		State:                  state,
		EmailVerificationToken: &token,
		VerificationStatus:     domain.VerificationPending,
	}
	if password != nil && *password != "" {
		hash, err := util.HashPassword(*password)
		if err != nil {
			return domain.Actor{}, apperrors.Internal("failed to hash password", err)
		}
		a.PasswordHash = &hash
	}
	return a, nil
}

// create inserts record after checking that email is unused in model's table
func (s *RegistrationService) create(ctx context.Context, model interface{}, email string, record interface{}) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(model).Where("email = ?", email).Count(&count).Error; err != nil {
		return apperrors.Internal("failed to check email", err)
	}
	if count > 0 {
		return apperrors.Conflict("email already registered")
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("email already registered")
		}
		return apperrors.Internal("failed to save registration", err)
	}
	return nil
}

// ListInvestors returns investors for admin review
func (s *RegistrationService) ListInvestors(ctx context.Context, q url.Values) (listing.Page[domain.Investor], error) {
	return listActors[domain.Investor](ctx, s.db, q, s.limits)
}

// ListPartners returns partners for admin review
func (s *RegistrationService) ListPartners(ctx context.Context, q url.Values) (listing.Page[domain.Partner], error) {
	return listActors[domain.Partner](ctx, s.db, q, s.limits)
}

func listActors[T any](ctx context.Context, db *gorm.DB, q url.Values, limits config.ListingConfig) (listing.Page[T], error) {
	if _, err := requireAdmin(ctx); err != nil {
		return listing.Page[T]{}, err
	}
	limit, offset, err := pageParams(q, limits)
	if err != nil {
		return listing.Page[T]{}, err
	}

	query := db.WithContext(ctx).Model(new(T))
	switch v := q.Get("verificationStatus"); v {
	case "":
	case domain.VerificationPending, domain.VerificationVerified, domain.VerificationRejected:
		query = query.Where("verification_status = ?", v)
	default:
		return listing.Page[T]{}, apperrors.Validation("invalid query", map[string]string{
			"verificationStatus": "must be one of pending, verified, rejected",
		})
	}
	if v := strings.TrimSpace(q.Get("search")); v != "" {
		like := "%" + strings.ToLower(v) + "%"
		query = query.Where("(LOWER(full_name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(city) LIKE ?)", like, like, like)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return listing.Page[T]{}, apperrors.Internal("failed to count registrations", err)
	}
	var items []T
	if err := query.Order("id DESC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		log.Printf("[REGISTRATION] List failed: database error: %v", err)
		return listing.Page[T]{}, apperrors.Internal("failed to list registrations", err)
	}
	return listing.NewPage(items, total, limit, offset), nil
}

// GetInvestor returns one investor to an admin
func (s *RegistrationService) GetInvestor(ctx context.Context, id uint) (*domain.Investor, error) {
	return getActor[domain.Investor](ctx, s.db, id, KindInvestor)
}

// GetPartner returns one partner to an admin
func (s *RegistrationService) GetPartner(ctx context.Context, id uint) (*domain.Partner, error) {
	return getActor[domain.Partner](ctx, s.db, id, KindPartner)
}

func getActor[T any](ctx context.Context, db *gorm.DB, id uint, kind string) (*T, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	rec := new(T)
	if err := db.WithContext(ctx).First(rec, id).Error; err != nil {
		return nil, notFoundOr(err, kind)
	}
	return rec, nil
}

var verificationColumns = []string{
	"verification_status", "is_verified", "rejection_reason", "verified_by", "verified_at",
}

// VerifyInvestor marks an investor verified
func (s *RegistrationService) VerifyInvestor(ctx context.Context, id uint) (*domain.Investor, error) {
	return reviewActor(ctx, s, id, KindInvestor, nil, investorActor)
}

// RejectInvestor marks an investor rejected with a reason
func (s *RegistrationService) RejectInvestor(ctx context.Context, id uint, reason string) (*domain.Investor, error) {
	return reviewActor(ctx, s, id, KindInvestor, &reason, investorActor)
}

// VerifyPartner marks a partner verified
func (s *RegistrationService) VerifyPartner(ctx context.Context, id uint) (*domain.Partner, error) {
	return reviewActor(ctx, s, id, KindPartner, nil, partnerActor)
}

// RejectPartner marks a partner rejected with a reason
func (s *RegistrationService) RejectPartner(ctx context.Context, id uint, reason string) (*domain.Partner, error) {
	return reviewActor(ctx, s, id, KindPartner, &reason, partnerActor)
}

func investorActor(i *domain.Investor) *domain.Actor { return &i.Actor }
func partnerActor(p *domain.Partner) *domain.Actor   { return &p.Actor }

// reviewActor verifies the registrant, or rejects it when reason is set
func reviewActor[T any](ctx context.Context, s *RegistrationService, id uint, kind string, reason *string, actor func(*T) *domain.Actor) (*T, error) {
	admin, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if reason != nil && strings.TrimSpace(*reason) == "" {
		return nil, apperrors.Validation("validation failed", map[string]string{"reason": "is required"})
	}

	rec, err := getActor[T](ctx, s.db, id, kind)
	if err != nil {
		return nil, err
	}

	a := actor(rec)
	if reason == nil {
		a.Verify(admin.ID, s.now())
	} else if err := a.Reject(admin.ID, *reason, s.now()); err != nil {
		return nil, apperrors.Validation("validation failed", map[string]string{"reason": err.Error()})
	}

	if err := s.db.WithContext(ctx).Model(rec).Select(verificationColumns).Updates(rec).Error; err != nil {
		log.Printf("[REGISTRATION] Review failed for %s id=%d: %v", kind, id, err)
		return nil, apperrors.Internal("failed to update "+kind, err)
	}

	log.Printf("[REGISTRATION] %s id=%d marked %s by admin=%d", kind, id, a.VerificationStatus, admin.ID)
	metrics.RecordRegistration(kind + "_" + a.VerificationStatus)
	return rec, nil
}
