package auth

import (
	"net/mail"
	"strings"

	"restopos-backend/internal/database"
	"restopos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 8

type RegisterAdminRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateUserRequest struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     models.UserRole `json:"role"`
}

type UserResponse struct {
	ID     uint            `json:"id"`
	Name   string          `json:"name"`
	Email  string          `json:"email"`
	Role   models.UserRole `json:"role"`
	Active bool            `json:"active"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, Active: u.Active}
}

// POST /api/auth/register-admin (only while no admin exists)
func RegisterAdminHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterAdminRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Cuerpo de la solicitud inválido")
		}

		var count int64
		if err := db.WithContext(c.UserContext()).Model(&models.User{}).
			Where("role = ?", models.RoleAdmin).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fiber.NewError(fiber.StatusForbidden, "Ya existe un administrador")
		}

		user, err := createUser(c, db, body.Name, body.Email, body.Password, models.RoleAdmin)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toUserResponse(user))
	}
}

// POST /api/auth/login
func LoginHandler(db *gorm.DB, secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Cuerpo de la solicitud inválido")
		}

		email := strings.TrimSpace(strings.ToLower(body.Email))

		var user models.User
		if err := db.WithContext(c.UserContext()).Where("email = ?", email).First(&user).Error; err != nil {
			if database.IsNotFound(err) {
				return fiber.NewError(fiber.StatusUnauthorized, "Correo o contraseña incorrectos")
			}
			return err
		}
		if !user.Active {
			return fiber.NewError(fiber.StatusUnauthorized, "Usuario inactivo")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Correo o contraseña incorrectos")
		}

		token, err := GenerateToken(secret, &user)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"token": token,
			"user":  toUserResponse(&user),
		})
	}
}

// GET /api/auth/me
func MeHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := ActorFrom(c)
		if err != nil {
			return err
		}

		var user models.User
		if err := db.WithContext(c.UserContext()).First(&user, actor.ID).Error; err != nil {
			if database.IsNotFound(err) {
				return fiber.NewError(fiber.StatusNotFound, "Usuario no encontrado")
			}
			return err
		}
		return c.JSON(toUserResponse(&user))
	}
}

// POST /api/usuarios (admin)
func CreateUserHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateUserRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Cuerpo de la solicitud inválido")
		}
		if !body.Role.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "Rol inválido")
		}

		user, err := createUser(c, db, body.Name, body.Email, body.Password, body.Role)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toUserResponse(user))
	}
}

func createUser(c *fiber.Ctx, db *gorm.DB, name, email, password string, role models.UserRole) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))

	if name == "" || email == "" || password == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Nombre, correo y contraseña son obligatorios")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Correo inválido")
	}
	if len(password) < minPasswordLength {
		return nil, fiber.NewError(fiber.StatusBadRequest, "La contraseña debe tener al menos 8 caracteres")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	}
	if err := db.WithContext(c.UserContext()).Create(&user).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return nil, fiber.NewError(fiber.StatusConflict, "El correo ya está registrado")
		}
		return nil, err
	}
	return &user, nil
}
