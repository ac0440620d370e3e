package actors

import (
	stdctx "context"
	"strings"
	"time"

	"rekindle/internal/database"
	"rekindle/internal/logger"
	"rekindle/internal/models"
	"rekindle/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserSupervisor handles signup and credential checks. It keeps a small
// email -> id index of accounts seen by this process so repeated logins
// skip the email lookup.
type UserSupervisor struct {
	db        database.DBAdapter
	emailToID map[string]uuid.UUID
	hashCost  int
	opTimeout time.Duration
}

type UserOptions struct {
	OperationTimeout time.Duration
	// HashCost defaults to bcrypt.DefaultCost.
	HashCost int
}

func NewUserSupervisor(db database.DBAdapter, opts UserOptions) actor.Actor {
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = 5 * time.Second
	}
	return &UserSupervisor{
		db:        db,
		emailToID: make(map[string]uuid.UUID),
		hashCost:  opts.HashCost,
		opTimeout: opts.OperationTimeout,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserSupervisor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		logger.Debug("UserSupervisor started")
	case *RegisterUserMsg:
		s.handleRegister(context, msg)
	case *LoginMsg:
		s.handleLogin(context, msg)
	}
}

func (s *UserSupervisor) handleRegister(context actor.Context, msg *RegisterUserMsg) {
	email := normalizeEmail(msg.Email)
	if email == "" || msg.Password == "" {
		context.Respond(utils.NewInvalidInputError("Email and password required"))
		return
	}

	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), s.opTimeout)
	defer cancel()

	if existing, err := s.db.GetUserByEmail(ctx, email); err == nil && existing != nil {
		context.Respond(utils.NewAppError(utils.ErrDuplicate, "User already exists", nil))
		return
	} else if err != nil && !utils.IsErrorCode(err, utils.ErrNotFound) {
		context.Respond(err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(msg.Password), s.hashCost)
	if err != nil {
		context.Respond(utils.NewInvalidInputError("Failed to hash password"))
		return
	}

	user := &models.User{
		ID:             uuid.New(),
		Email:          email,
		HashedPassword: string(hashed),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.db.SaveUser(ctx, user); err != nil {
		// lost a race with a concurrent signup for the same email
		if utils.IsErrorCode(err, utils.ErrDuplicate) {
			context.Respond(utils.NewAppError(utils.ErrDuplicate, "User already exists", err))
			return
		}
		logger.Error("Failed to save user", "error", err)
		context.Respond(err)
		return
	}

	s.emailToID[email] = user.ID
	logger.Info("User registered", "userId", user.ID)
	context.Respond(user)
}

func (s *UserSupervisor) handleLogin(context actor.Context, msg *LoginMsg) {
	email := normalizeEmail(msg.Email)
	if email == "" || msg.Password == "" {
		context.Respond(utils.NewInvalidInputError("Email and password required"))
		return
	}

	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), s.opTimeout)
	defer cancel()

	user, err := s.lookup(ctx, email)
	if err != nil {
		if utils.IsErrorCode(err, utils.ErrNotFound) {
			context.Respond(utils.NewAppError(utils.ErrInvalidCredentials, "Invalid credentials", nil))
			return
		}
		context.Respond(err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(msg.Password)); err != nil {
		logger.Debug("Password mismatch", "userId", user.ID)
		context.Respond(utils.NewAppError(utils.ErrInvalidCredentials, "Invalid credentials", nil))
		return
	}

	context.Respond(&LoginResult{UserID: user.ID, Email: user.Email})
}

func (s *UserSupervisor) lookup(ctx stdctx.Context, email string) (*models.User, error) {
	if id, ok := s.emailToID[email]; ok {
		user, err := s.db.GetUser(ctx, id)
		if err == nil {
			return user, nil
		}
		delete(s.emailToID, email)
	}
	user, err := s.db.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	s.emailToID[email] = user.ID
	return user, nil
}
