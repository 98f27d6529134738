package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"bigpartner/internal/domain"
	"bigpartner/internal/services"
	apperrors "bigpartner/pkg/errors"
)

func (s *Server) mount() {
	s.handle("GET", "/health", public, s.health)

	// auth
	s.handle("POST", "/api/auth/register", public, s.register)
	s.handle("POST", "/api/auth/login", public, s.login)
	s.handle("GET", "/api/auth/me", user, s.me)
	s.handle("POST", "/api/auth/verify-email", public, s.verifyEmail)
	s.handle("POST", "/api/auth/forgot-password", public, s.forgotPassword)
	s.handle("POST", "/api/auth/reset-password", public, s.resetPassword)
	s.handle("GET", "/api/admin/users", admin, s.listUsers)
	s.handle("PUT", "/api/admin/users/{id}/role", admin, s.updateRole)

	// properties
	s.handle("GET", "/api/properties", optional, s.listProperties)
	s.handle("GET", "/api/properties/categories", public, s.categories)
	s.handle("GET", "/api/properties/trash", user, s.trash)
	s.handle("GET", "/api/properties/{ref}", optional, s.getProperty)
	s.handle("POST", "/api/properties", user, s.createProperty)
	s.handle("PUT", "/api/properties/{ref}", user, s.updateProperty)
	s.handle("DELETE", "/api/properties/{ref}", user, s.deleteProperty)
	s.handle("POST", "/api/properties/{ref}/view", public, s.viewProperty)
	s.handle("POST", "/api/properties/{ref}/restore", user, s.restoreProperty)
	s.handle("POST", "/api/uploads", user, s.upload)

	// moderation
	s.handle("POST", "/api/properties/{ref}/approve", admin, s.approve)
	s.handle("POST", "/api/properties/{ref}/reject", admin, s.reject)
	s.handle("POST", "/api/properties/{ref}/feature", admin, s.feature)
	s.handle("POST", "/api/properties/{ref}/verify", admin, s.verifyProperty)
	s.handle("GET", "/api/admin/properties/pending", admin, s.pending)

	// favorites
	s.handle("GET", "/api/favorites", user, s.listFavorites)
	s.handle("POST", "/api/favorites", user, s.addFavoriteBody)
	s.handle("GET", "/api/favorites/{propertyId}", user, s.isFavorite)
	s.handle("POST", "/api/favorites/{propertyId}", user, s.addFavorite)
	s.handle("DELETE", "/api/favorites/{propertyId}", user, s.removeFavorite)

	// inquiries
	s.handle("POST", "/api/inquiries", public, s.createInquiry)
	s.handle("GET", "/api/inquiries", staff, s.listInquiries)
	s.handle("GET", "/api/inquiries/{id}", staff, s.getInquiry)
	s.handle("PUT", "/api/inquiries/{id}", staff, s.updateInquiry)
	s.handle("POST", "/api/inquiries/{id}/respond", staff, s.respondInquiry)

	// registrations
	s.handle("POST", "/api/investors", public, s.registerInvestor)
	s.handle("POST", "/api/investors/validate/{step}", public, s.validateInvestorStep)
	s.handle("GET", "/api/investors", admin, s.listInvestors)
	s.handle("GET", "/api/investors/{id}", admin, s.getInvestor)
	s.handle("POST", "/api/investors/{id}/verify", admin, s.verifyInvestor)
	s.handle("POST", "/api/investors/{id}/reject", admin, s.rejectInvestor)
	s.handle("POST", "/api/partners", public, s.registerPartner)
	s.handle("POST", "/api/partners/validate/{step}", public, s.validatePartnerStep)
	s.handle("GET", "/api/partners", admin, s.listPartners)
	s.handle("GET", "/api/partners/{id}", admin, s.getPartner)
	s.handle("POST", "/api/partners/{id}/verify", admin, s.verifyPartner)
	s.handle("POST", "/api/partners/{id}/reject", admin, s.rejectPartner)
}

type reasonBody struct {
	Reason string `json:"reason"`
}

type flagBody struct {
	Value *bool `json:"value"`
}

type tokenBody struct {
	Token string `json:"token"`
}

type emailBody struct {
	Email string `json:"email"`
}

type roleBody struct {
	Role string `json:"role"`
}

type favoriteBody struct {
	PropertyID uint `json:"propertyId"`
}

type messageBody struct {
	Message string `json:"message"`
}

type favoritedBody struct {
	Favorited bool `json:"favorited"`
}

type flagSetter func(ctx context.Context, id uint, value bool) (*domain.Property, error)

// ok writes v with 200
func ok(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return encode(r.Context(), w, http.StatusOK, v)
}

func created(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return encode(r.Context(), w, http.StatusCreated, v)
}

func noContent(w http.ResponseWriter) error {
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// health

func (s *Server) health(w http.ResponseWriter, r *http.Request, _ map[string]string) error {
	res := s.svc.Health.Check(r.Context())
	status := http.StatusOK
	if res.Database != "up" {
		status = http.StatusServiceUnavailable
	}
	return encode(r.Context(), w, status, res)
}

// auth

func (s *Server) register(w http.ResponseWriter, r *http.Request, _ map[string]string) error {
	var in services.RegisterInput
	if err := decode(r, &in); err != nil {
		return err
	}
	res, err := s.svc.Auth.Register(r.Context(), &in)
	if err != nil {
		return err
	}
	return created(w, r, res)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, _ map[string]string) error {
	var in services.LoginInput
	if err := decode(r, &in); err != nil {
		return err
	}
	res, err := s.svc.Auth.Login(r.Context(), &in)
	if err != nil {
		return err
	}
	return ok(w, r, res)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request, _ map[string]string) error {
	u, err := s.svc.Auth.Me(r.Context())
	if err != nil {
		return err
	}
	return ok(w, r, u)
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request, _ map[string]string) error {
	var in tokenBody
	if err := decode(r, &in); err != nil {
		return err
	}
	if in.Token == "" {
		in.Token = r.URL.Query().Get("token")
	}
	if err := s.svc.Auth.VerifyEmail(r.Context(), in.Token); err != nil {
		return err
	}
	return ok(w, r, messageBody{Message: "email verified"})
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request, _ map[string]string) error {
	var in emailBody
	if err := decode(r, &in); err != nil {
		return err
	}
	if err := s.svc.Auth.ForgotPassword(r.Context(), in.Email); err != nil {
		return err
	}
	return ok(w, r, messageBody{Message: "if the address is registered, a reset link has been sent"})
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request, _ map[string]string) error {
	var in services.ResetPasswordInput
	if err := decode(r, &in); err != nil {
		return err
	}
	if err := s.svc.Auth.ResetPassword(r.Context(), &in); err != nil {
		return err
	}
	return ok(w, r, messageBody{Message: "password updated"})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request, _ map[string]string) error {
	page, err := s.svc.Auth.ListUsers(r.Context(), r.URL.Query())
	if err != nil {
		return err
	}
	return ok(w, r, page)
}

func (s *Server) updateRole(w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	id, err := pathID(vars, "id")
	if err != nil {
		return err
	}
	var in roleBody
	if err := decode(r, &in); err != nil {
		return err
	}
	u, err := s.svc.Auth.UpdateRole(r.Context(), id, in.Role)
	if err != nil {
		return err
	}
	return ok(w, r, u)
}

// properties

func (s *Server) listProperties(w http.ResponseWriter, r *http.Request, _ map[string]string) error {
	page, err := s.svc.Property.List(r.Context(), r.URL.Query())
	if err != nil {
		return err
	}
	return ok(w, r, page)
}

func (s *Server) categories(w http.ResponseWriter, r *http.Request, _ map[string]string) error {
	return ok(w, r, s.svc.Property.Categories())
}

func (s *Server) trash(w http.ResponseWriter, r *http.Request, _ map[string]string) error {
	page, err := s.svc.Property.Trash(r.Context(), r.URL.Query())
	if err != nil {
		return err
	}
	return ok(w, r, page)
}

// getProperty resolves {ref} as a slug; numeric refs load by id for owners
// and admins.
func (s *Server) getProperty(w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	ref := vars["ref"]
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil && id > 0 {
		if _, authed := services.UserFrom(r.Context()); authed {
			p, err := s.svc.Property.Get(r.Context(), uint(id))
			if err == nil {
				return ok(w, r, p)
			}
			if !apperrors.IsNotFound(err) && !apperrors.IsForbidden(err) {
				return err
			}
		}
	}
	p, err := s.svc.Property.GetBySlug(r.Context(), ref)
	if err != nil {
		return err
	}
	return ok(w, r, p)
}

func (s *Server) createProperty(w http.ResponseWriter, r *http.Request, _ map[string]string) error {
	var in services.PropertyInput
	if err := decode(r, &in); err != nil {
		return err
	}
	p, err := s.svc.Property.Create(r.Context(), &in)
	if err != nil {
		return err
	}
	return created(w, r, p)
}

func (s *Server) updateProperty(w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	id, err := pathID(vars, "ref")
	if err != nil {
		return err
	}
	var in services.PropertyInput
	if err := decode(r, &in); err != nil {
		return err
	}
	p, err := s.svc.Property.Update(r.Context(), id, &in)
	if err != nil {
		return err
	}
	return ok(w, r, p)
}

func (s *Server) deleteProperty(w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	id, err := pathID(vars, "ref")
	if err != nil {
		return err
	}
	permanent, _ := strconv.ParseBool(r.URL.Query().Get("permanent"))
	if err := s.svc.Property.Delete(r.Context(), id, permanent); err != nil {
		return err
	}
	return noContent(w)
}

// viewProperty always answers 204; unknown or malformed ids are ignored
func (s *Server) viewProperty(w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	if id, err := pathID(vars, "ref"); err == nil {
		s.svc.Property.RecordView(r.Context(), id)
	}
	return noContent(w)
}

func (s *Server) restoreProperty(w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	id, err := pathID(vars, "ref")
	if err != nil {
		return err
	}
	p, err := s.svc.Property.Restore(r.Context(), id)
	if err != nil {
		return err
	}
	return ok(w, r, p)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request, _ map[string]string) error {
	// allow for multipart framing around the file
	r.Body = http.MaxBytesReader(w, r.Body, s.svc.Upload.MaxBytes()+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.Validation("upload rejected", map[string]string{"file": "file exceeds the upload size limit"})
		}
		return apperrors.Validation("upload rejected", map[string]string{"file": "is required"})
	}
	defer file.Close()

	res, err := s.svc.Upload.Image(r.Context(), header.Filename, file)
	if err != nil {
		return err
	}
	return created(w, r, res)
}

// moderation

func (s *Server) approve(w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	id, err := pathID(vars, "ref")
	if err != nil {
		return err
	}
	p, err := s.svc.Moderation.Approve(r.Context(), id)
	if err != nil {
		return err
	}
	return ok(w, r, p)
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	id, err := pathID(vars, "ref")
	if err != nil {
		return err
	}
	var in reasonBody
	if err := decode(r, &in); err != nil {
		return err
	}
	p, err := s.svc.Moderation.Reject(r.Context(), id, in.Reason)
	if err != nil {
		return err
	}
	return ok(w, r, p)
}

func (s *Server) feature(w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	return s.flag(w, r, vars, s.svc.Moderation.SetFeatured)
}

func (s *Server) verifyProperty(w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	return s.flag(w, r, vars, s.svc.Moderation.SetVerified)
}

// flag applies a boolean toggle; a missing value means true
func (s *Server) flag(w http.ResponseWriter, r *http.Request, vars map[string]string, set flagSetter) error {
	id, err := pathID(vars, "ref")
	if err != nil {
		return err
	}
	var in flagBody
	if err := decode(r, &in); err != nil {
		return err
	}
	value := in.Value == nil || *in.Value
	p, err := set(r.Context(), id, value)
	if err != nil {
		return err
	}
	return ok(w, r, p)
}

func (s *Server) pending(w http.ResponseWriter, r *http.Request, _ map[string]string) error {
	page, err := s.svc.Moderation.Pending(r.Context(), r.URL.Query())
	if err != nil {
		return err
	}
	return ok(w, r, page)
}

// favorites

func (s *Server) listFavorites(w http.ResponseWriter, r *http.Request, _ map[string]string) error {
	page, err := s.svc.Favorite.List(r.Context(), r.URL.Query())
	if err != nil {
		return err
	}
	return ok(w, r, page)
}

func (s *Server) addFavoriteBody(w http.ResponseWriter, r *http.Request, _ map[string]string) error {
	var in favoriteBody
	if err := decode(r, &in); err != nil {
		return err
	}
	if in.PropertyID == 0 {
		return apperrors.Validation("validation failed", map[string]string{"propertyId": "is required"})
	}
	fav, err := s.svc.Favorite.Add(r.Context(), in.PropertyID)
	if err != nil {
		return err
	}
	return created(w, r, fav)
}

func (s *Server) addFavorite(w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	id, err := pathID(vars, "propertyId")
	if err != nil {
		return err
	}
	fav, err := s.svc.Favorite.Add(r.Context(), id)
	if err != nil {
		return err
	}
	return created(w, r, fav)
}

func (s *Server) isFavorite(w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	id, err := pathID(vars, "propertyId")
	if err != nil {
		return err
	}
	fav, err := s.svc.Favorite.IsFavorite(r.Context(), id)
	if err != nil {
		return err
	}
	return ok(w, r, favoritedBody{Favorited: fav})
}

func (s *Server) removeFavorite(w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	id, err := pathID(vars, "propertyId")
	if err != nil {
		return err
	}
	if err := s.svc.Favorite.Remove(r.Context(), id); err != nil {
		return err
	}
	return noContent(w)
}

// inquiries

func (s *Server) createInquiry(w http.ResponseWriter, r *http.Request, _ map[string]string) error {
	var in services.InquiryInput
	if err := decode(r, &in); err != nil {
		return err
	}
	inq, err := s.svc.Inquiry.Create(r.Context(), &in)
	if err != nil {
		return err
	}
	return created(w, r, inq)
}

func (s *Server) listInquiries(w http.ResponseWriter, r *http.Request, _ map[string]string) error {
	page, err := s.svc.Inquiry.List(r.Context(), r.URL.Query())
	if err != nil {
		return err
	}
	return ok(w, r, page)
}

func (s *Server) getInquiry(w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	id, err := pathID(vars, "id")
	if err != nil {
		return err
	}
	inq, err := s.svc.Inquiry.Get(r.Context(), id)
	if err != nil {
		return err
	}
	return ok(w, r, inq)
}

func (s *Server) updateInquiry(w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	id, err := pathID(vars, "id")
	if err != nil {
		return err
	}
	var in services.InquiryUpdate
	if err := decode(r, &in); err != nil {
		return err
	}
	inq, err := s.svc.Inquiry.Update(r.Context(), id, &in)
	if err != nil {
		return err
	}
	return ok(w, r, inq)
}

func (s *Server) respondInquiry(w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	id, err := pathID(vars, "id")
	if err != nil {
		return err
	}
	var in services.InquiryResponse
	if err := decode(r, &in); err != nil {
		return err
	}
	inq, err := s.svc.Inquiry.Respond(r.Context(), id, &in)
	if err != nil {
		return err
	}
	return ok(w, r, inq)
}

// registrations

func (s *Server) registerInvestor(w http.ResponseWriter, r *http.Request, _ map[string]string) error {
	var in services.InvestorInput
	if err := decode(r, &in); err != nil {
		return err
	}
	inv, err := s.svc.Registration.RegisterInvestor(r.Context(), &in)
	if err != nil {
		return err
	}
	return created(w, r, inv)
}

func (s *Server) registerPartner(w http.ResponseWriter, r *http.Request, _ map[string]string) error {
	var in services.PartnerInput
	if err := decode(r, &in); err != nil {
		return err
	}
	p, err := s.svc.Registration.RegisterPartner(r.Context(), &in)
	if err != nil {
		return err
	}
	return created(w, r, p)
}

func (s *Server) validateInvestorStep(w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	step, err := strconv.Atoi(vars["step"])
	if err != nil {
		return apperrors.BadRequest("step must be a number")
	}
	var in services.InvestorInput
	if err := decode(r, &in); err != nil {
		return err
	}
	res, err := s.svc.Registration.ValidateInvestorStep(step, &in)
	if err != nil {
		return err
	}
	return ok(w, r, res)
}

func (s *Server) validatePartnerStep(w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	step, err := strconv.Atoi(vars["step"])
	if err != nil {
		return apperrors.BadRequest("step must be a number")
	}
	var in services.PartnerInput
	if err := decode(r, &in); err != nil {
		return err
	}
	res, err := s.svc.Registration.ValidatePartnerStep(step, &in)
	if err != nil {
		return err
	}
	return ok(w, r, res)
}

func (s *Server) listInvestors(w http.ResponseWriter, r *http.Request, _ map[string]string) error {
	page, err := s.svc.Registration.ListInvestors(r.Context(), r.URL.Query())
	if err != nil {
		return err
	}
	return ok(w, r, page)
}

func (s *Server) listPartners(w http.ResponseWriter, r *http.Request, _ map[string]string) error {
	page, err := s.svc.Registration.ListPartners(r.Context(), r.URL.Query())
	if err != nil {
		return err
	}
	return ok(w, r, page)
}

func (s *Server) getInvestor(w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	id, err := pathID(vars, "id")
	if err != nil {
		return err
	}
	inv, err := s.svc.Registration.GetInvestor(r.Context(), id)
	if err != nil {
		return err
	}
	return ok(w, r, inv)
}

func (s *Server) getPartner(w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	id, err := pathID(vars, "id")
	if err != nil {
		return err
	}
	p, err := s.svc.Registration.GetPartner(r.Context(), id)
	if err != nil {
		return err
	}
	return ok(w, r, p)
}

func (s *Server) verifyInvestor(w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	id, err := pathID(vars, "id")
	if err != nil {
		return err
	}
	inv, err := s.svc.Registration.VerifyInvestor(r.Context(), id)
	if err != nil {
		return err
	}
	return ok(w, r, inv)
}

func (s *Server) rejectInvestor(w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	id, err := pathID(vars, "id")
	if err != nil {
		return err
	}
	var in reasonBody
	if err := decode(r, &in); err != nil {
		return err
	}
	inv, err := s.svc.Registration.RejectInvestor(r.Context(), id, in.Reason)
	if err != nil {
		return err
	}
	return ok(w, r, inv)
}

func (s *Server) verifyPartner(w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	id, err := pathID(vars, "id")
	if err != nil {
		return err
	}
	p, err := s.svc.Registration.VerifyPartner(r.Context(), id)
	if err != nil {
		return err
	}
	return ok(w, r, p)
}

func (s *Server) rejectPartner(w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	id, err := pathID(vars, "id")
	if err != nil {
		return err
	}
	var in reasonBody
	if err := decode(r, &in); err != nil {
		return err
	}
	p, err := s.svc.Registration.RejectPartner(r.Context(), id, in.Reason)
	if err != nil {
		return err
	}
	return ok(w, r, p)
}
