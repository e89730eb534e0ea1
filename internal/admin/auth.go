package admin

import (
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/roadwatch/roadwatch/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// adminClaims is the JWT payload for authenticated admin sessions.
type adminClaims struct {
	Phone string `json:"phone"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type otpRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// handleOTPRequest issues a one-time code to a registered admin phone. The
// response is 200 whether or not the phone is registered, so the endpoint
// cannot be used to enumerate admin accounts.
func (s *Server) handleOTPRequest(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "phone is required")
		return
	}

	var admin models.AdminUser
	err := s.db.First(&admin, "phone = ?", req.Phone).Error
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusOK, gin.H{"status": "sent"})
		return
	}
	if err != nil {
		abortError(c, http.StatusInternalServerError, "otp issue failed")
		return
	}

	code, err := otpCode()
	if err != nil {
		abortError(c, http.StatusInternalServerError, "otp issue failed")
		return
	}
	otp := models.OTPCode{
		Phone:     admin.Phone,
		Code:      code,
		ExpiresAt: time.Now().Add(s.otpTTL),
	}
	if err := s.db.Create(&otp).Error; err != nil {
		abortError(c, http.StatusInternalServerError, "otp issue failed")
		return
	}

	if s.otpSender != nil {
		body := fmt.Sprintf("Your RoadWatch admin code is %s. It expires in %d minutes.",
			code, int(s.otpTTL.Minutes()))
		if err := s.otpSender.Notify(c.Request.Context(), admin.Phone, body); err != nil {
			log.Printf("admin: send otp to %s: %v, retrying over sms", admin.Phone, err)
			if err := s.otpSender.NotifySMS(c.Request.Context(), admin.Phone, body); err != nil {
				log.Printf("admin: send otp sms to %s: %v", admin.Phone, err)
				abortError(c, http.StatusBadGateway, "otp delivery failed")
				return
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

type otpVerifyRequest struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// handleOTPVerify exchanges a valid code for a bearer token. Codes are
// single use and expire after the configured TTL.
func (s *Server) handleOTPVerify(c *gin.Context) {
	var req otpVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "phone and code are required")
		return
	}

	var otp models.OTPCode
	err := s.db.Where("phone = ? AND code = ? AND consumed = ?", req.Phone, req.Code, false).
		Order("id DESC").First(&otp).Error
	if err != nil || time.Now().After(otp.ExpiresAt) {
		abortError(c, http.StatusUnauthorized, "invalid or expired code")
		return
	}

	var admin models.AdminUser
	if err := s.db.First(&admin, "phone = ?", req.Phone).Error; err != nil {
		abortError(c, http.StatusUnauthorized, "invalid or expired code")
		return
	}

	if err := s.db.Model(&otp).Update("consumed", true).Error; err != nil {
		abortError(c, http.StatusInternalServerError, "verification failed")
		return
	}
	s.db.Model(&admin).Update("last_login_at", time.Now())

	token, err := s.issueToken(admin)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "verification failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "role": admin.Role})
}

type loginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// handlePasswordLogin authenticates an admin that has a password set.
func (s *Server) handlePasswordLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "phone and password are required")
		return
	}

	var admin models.AdminUser
	if err := s.db.First(&admin, "phone = ?", req.Phone).Error; err != nil {
		abortError(c, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if admin.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)) != nil {
		abortError(c, http.StatusUnauthorized, "invalid credentials")
		return
	}
	s.db.Model(&admin).Update("last_login_at", time.Now())

	token, err := s.issueToken(admin)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "login failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "role": admin.Role})
}

// issueToken signs a bearer token for the admin.
func (s *Server) issueToken(admin models.AdminUser) (string, error) {
	now := time.Now()
	claims := adminClaims{
		Phone: admin.Phone,
		Role:  admin.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   admin.Phone,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("admin: sign token: %w", err)
	}
	return signed, nil
}

// authRequired validates the bearer token and stashes the claims.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			abortError(c, http.StatusUnauthorized, "missing bearer token")
			return
		}

		var claims adminClaims
		_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.jwtSecret, nil
		})
		if err != nil {
			abortError(c, http.StatusUnauthorized, "invalid token")
			return
		}

		c.Set("adminPhone", claims.Phone)
		c.Set("adminRole", claims.Role)
		c.Next()
	}
}

// otpCode generates a six-digit numeric code.
func otpCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("admin: generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// HashPassword hashes an admin password for storage. Used by the CLI when
// creating accounts.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", fmt.Errorf("admin: password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("admin: hash password: %w", err)
	}
	return string(hash), nil
}
