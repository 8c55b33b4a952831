package handlers

import (
	"net/http"

	"canteen-api/auth"
	"canteen-api/middleware"
	"canteen-api/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SendOTPRequest struct {
	Phone string `json:"phone" binding:"required"`
	Name  string `json:"name"`
}

type VerifyOTPRequest struct {
	Phone string `json:"phone" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
	Email    string `json:"email" binding:"omitempty,email"`
}

type LoginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ProfileRequest struct {
	Block       string `json:"block" binding:"required"`
	ClassNumber string `json:"classNumber" binding:"required"`
}

type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type EmailCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// SendOTP provisions the user if needed and sends a login code
func (h *Handler) SendOTP(c *gin.Context) {
	var req SendOTPRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.auth.RequestCode(c.Request.Context(), services.RequestCodeInput{
		Phone:    req.Phone,
		Name:     req.Name,
		ForceSMS: c.Query("sendSms") == "true",
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	body := gin.H{"isNewUser": res.IsNewUser}
	if res.Delivered {
		body["message"] = "OTP sent successfully"
	} else {
		body["message"] = "OTP generated"
	}
	if res.Code != "" {
		body["otp"] = res.Code
	}
	if res.Warning != "" {
		body["warning"] = res.Warning
	}
	c.JSON(http.StatusOK, body)
}

// VerifyOTP exchanges a valid code for a token and a session
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if !h.bindJSON(c, &req) {
		return
	}
	res, err := h.auth.VerifyCode(c.Request.Context(), req.Phone, req.OTP)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.startSession(c, res)
	c.JSON(http.StatusOK, gin.H{
		"message": "OTP verified successfully",
		"token":   res.Token,
		"user":    res.User,
	})
}

// Register creates a password account
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if !h.bindJSON(c, &req) {
		return
	}
	res, err := h.auth.Register(c.Request.Context(), services.RegisterInput{
		Name:     req.Name,
		Phone:    req.Phone,
		Password: req.Password,
		Email:    req.Email,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.startSession(c, res)
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Account created successfully",
		"token":   res.Token,
		"user":    res.User,
	})
}

// Login authenticates with phone and password
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !h.bindJSON(c, &req) {
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req.Phone, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.startSession(c, res)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"token":   res.Token,
		"user":    res.User,
	})
}

// CurrentUser returns the caller's profile
func (h *Handler) CurrentUser(c *gin.Context) {
	user, err := h.auth.CurrentUser(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateProfile sets the delivery block and class number
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req ProfileRequest
	if !h.bindJSON(c, &req) {
		return
	}
	res, err := h.auth.UpdateProfile(c.Request.Context(), middleware.PrincipalFrom(c), req.Block, req.ClassNumber)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"token":   res.Token,
		"user":    res.User,
	})
}

// Logout destroys the server-side session and clears the cookie
func (h *Handler) Logout(c *gin.Context) {
	if sid, err := c.Cookie(h.cookie.Name); err == nil && sid != "" {
		if err := h.sessions.Delete(c.Request.Context(), sid); err != nil {
			h.log.Error("session delete failed", zap.Error(err))
			h.respondError(c, err)
			return
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// SendEmailVerification attaches an email and mails a verification code
func (h *Handler) SendEmailVerification(c *gin.Context) {
	var req EmailRequest
	if !h.bindJSON(c, &req) {
		return
	}
	res, err := h.auth.RequestEmailVerification(c.Request.Context(), middleware.PrincipalFrom(c), req.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}
	body := gin.H{"message": "Verification code sent"}
	if res.Code != "" {
		body["code"] = res.Code
	}
	if res.Warning != "" {
		body["warning"] = res.Warning
	}
	c.JSON(http.StatusOK, body)
}

// VerifyEmail confirms the emailed code
func (h *Handler) VerifyEmail(c *gin.Context) {
	var req EmailCodeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	user, err := h.auth.VerifyEmail(c.Request.Context(), middleware.PrincipalFrom(c), req.Code)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email verified successfully", "user": user})
}

// startSession stores a server-side session and sets its cookie. The bearer
// token in the response still works if this fails.
func (h *Handler) startSession(c *gin.Context, res *services.AuthResult) {
	sid, err := h.sessions.Create(c.Request.Context(), auth.Principal{UserID: res.User.ID, Role: res.User.Role})
	if err != nil {
		h.log.Warn("session create failed", zap.Uint("user_id", res.User.ID), zap.Error(err))
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, sid, int(h.cookie.TTL.Seconds()), "/", "", h.cookie.Secure, true)
}
