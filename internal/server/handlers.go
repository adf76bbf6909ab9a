package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/franckalain/leafmetric/internal/database"
	"github.com/franckalain/leafmetric/internal/ml"
	"github.com/franckalain/leafmetric/internal/models"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// MaxUploadSize bounds an uploaded image
	MaxUploadSize = 10 << 20
	uploadsPrefix = "uploads"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Experience int    `json:"experience" validate:"gte=0,lte=80"`
	Password   string `json:"password" validate:"required,min=6"`
}

type predictRequest struct {
	ImageID       int64 `json:"imageId" validate:"required"`
	Aroma         int   `json:"aroma" validate:"min=1,max=7"`
	Color         int   `json:"color" validate:"min=1,max=7"`
	Taste         int   `json:"taste" validate:"min=1,max=7"`
	AfterTaste    int   `json:"afterTaste" validate:"min=1,max=7"`
	Acceptability int   `json:"acceptability" validate:"min=1,max=7"`
}

func (p predictRequest) scores() models.SensoryScores {
	return models.SensoryScores{
		Aroma: p.Aroma, Color: p.Color, Taste: p.Taste,
		AfterTaste: p.AfterTaste, Acceptability: p.Acceptability,
	}
}

type savePredictionRequest struct {
	ImageID            int64   `json:"imageId" validate:"required"`
	Grade              string  `json:"grade" validate:"required,oneof=OP OP1 OPA"`
	GradeConfidence    float64 `json:"gradeConfidence" validate:"gte=0,lte=1"`
	Category           int     `json:"category" validate:"min=1,max=3"`
	CategoryConfidence float64 `json:"categoryConfidence" validate:"gte=0,lte=1"`
	Model              string  `json:"model" validate:"required"`
}

type feedbackRequest struct {
	PredictionID  int64  `json:"predictionId" validate:"required"`
	IsAgreed      bool   `json:"isAgreed"`
	Grade         string `json:"grade" validate:"required,oneof=OP OP1 OPA"`
	Comment       string `json:"comment" validate:"max=2000"`
	Aroma         int    `json:"aroma" validate:"min=1,max=7"`
	Color         int    `json:"color" validate:"min=1,max=7"`
	Taste         int    `json:"taste" validate:"min=1,max=7"`
	AfterTaste    int    `json:"afterTaste" validate:"min=1,max=7"`
	Acceptability int    `json:"acceptability" validate:"min=1,max=7"`
}

// handleLogin checks credentials and returns the token in the Access-Token header
// POST /api/user/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := s.db.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		log.Printf("[ERROR] Failed to look up user: %v", err)
		respondError(w, http.StatusInternalServerError, "Login failed")
		return
	}
	if account == nil || bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := s.issueToken(account.ID)
	if err != nil {
		log.Printf("[ERROR] Failed to sign token: %v", err)
		respondError(w, http.StatusInternalServerError, "Login failed")
		return
	}
	w.Header().Set(AccessTokenHeader, token)
	respondJSON(w, http.StatusOK, map[string]any{"user": account.User})
}

// handleRegister creates an account
// POST /api/user
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("[ERROR] Failed to hash password: %v", err)
		respondError(w, http.StatusInternalServerError, "Registration failed")
		return
	}
	account := &models.Account{
		User:         models.User{Name: req.Name, Email: req.Email, Experience: req.Experience},
		PasswordHash: string(hash),
	}
	if err := s.db.CreateUser(r.Context(), account); err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			respondError(w, http.StatusConflict, "Email already registered")
			return
		}
		log.Printf("[ERROR] Failed to create user: %v", err)
		respondError(w, http.StatusInternalServerError, "Registration failed")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"user": account.User})
}

// handleCurrentUser returns the signed in user
// GET /api/user
func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	account, err := s.db.GetUser(r.Context(), userIDFrom(r.Context()))
	if err != nil || account == nil {
		log.Printf("[ERROR] Failed to load user: %v", err)
		respondError(w, http.StatusInternalServerError, "Get details failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user": account.User})
}

// handleUploadImage stores the multipart "image" field as <uuid>.<ext>
// POST /api/image
func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "Image is too large or the form is invalid")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadSize+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Image upload failed")
		return
	}
	if len(data) > MaxUploadSize {
		respondError(w, http.StatusRequestEntityTooLarge, "Image is too large")
		return
	}
	mtype := mimetype.Detect(data)
	if !mtype.Is("image/jpeg") && !mtype.Is("image/png") {
		respondError(w, http.StatusUnsupportedMediaType, "Only JPEG and PNG images are supported")
		return
	}
	if _, err := ml.CheckImage(data); err != nil {
		if errors.Is(err, ml.ErrImageTooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "Image dimensions are too large")
			return
		}
		respondError(w, http.StatusUnsupportedMediaType, "Image could not be decoded")
		return
	}

	name := uuid.New().String() + mtype.Extension()
	if err := os.MkdirAll(s.settings.UploadDir, 0o755); err != nil {
		log.Printf("[ERROR] Failed to create upload dir: %v", err)
		respondError(w, http.StatusInternalServerError, "Image upload failed")
		return
	}
	if err := os.WriteFile(filepath.Join(s.settings.UploadDir, name), data, 0o644); err != nil {
		log.Printf("[ERROR] Failed to store image: %v", err)
		respondError(w, http.StatusInternalServerError, "Image upload failed")
		return
	}

	image := &models.StoredImage{
		UploadedImage: models.UploadedImage{Path: uploadsPrefix + "/" + name},
		UserID:        userIDFrom(r.Context()),
	}
	if err := s.db.SaveImage(r.Context(), image); err != nil {
		log.Printf("[ERROR] Failed to record image: %v", err)
		respondError(w, http.StatusInternalServerError, "Image upload failed")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"image": image.UploadedImage})
}

// ownImage loads an image record of the caller, writing the error response if there is none
func (s *Server) ownImage(w http.ResponseWriter, r *http.Request, id int64) (*models.StoredImage, bool) {
	image, err := s.db.GetImage(r.Context(), id)
	if err != nil {
		log.Printf("[ERROR] Failed to load image %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "Failed to load image")
		return nil, false
	}
	if image == nil || image.UserID != userIDFrom(r.Context()) {
		respondError(w, http.StatusNotFound, "Image not found")
		return nil, false
	}
	return image, true
}

// handlePredict grades an uploaded image with the caller's sensory scores
// POST /api/predict
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	image, ok := s.ownImage(w, r, req.ImageID)
	if !ok {
		return
	}

	data, err := os.ReadFile(filepath.Join(s.settings.UploadDir, filepath.Base(image.Path)))
	if err != nil {
		log.Printf("[ERROR] Failed to read image %d: %v", image.ID, err)
		respondError(w, http.StatusInternalServerError, "Analyze failed")
		return
	}

	grading, err := s.model.Grade(r.Context(), data, req.scores())
	if err != nil {
		log.Printf("[ERROR] Failed to grade image %d: %v", image.ID, err)
		respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Analyze failed: %v", err))
		return
	}
	log.Printf("Graded image %d: %s (%.2f), category %d (%.2f)",
		image.ID, grading.Grade, grading.GradeConfidence, grading.Category, grading.CategoryConfidence)

	respondJSON(w, http.StatusOK, models.Prediction{
		ImageID:            image.ID,
		Grade:              grading.Grade,
		GradeConfidence:    grading.GradeConfidence,
		Category:           grading.Category,
		CategoryConfidence: grading.CategoryConfidence,
		Model:              grading.Model,
		Image:              image.Path,
	})
}

// handleSavePrediction stores a prediction the user accepted
// POST /api/predict/save
func (s *Server) handleSavePrediction(w http.ResponseWriter, r *http.Request) {
	var req savePredictionRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	image, ok := s.ownImage(w, r, req.ImageID)
	if !ok {
		return
	}

	userID := userIDFrom(r.Context())
	saved := &models.SavedPrediction{Prediction: models.Prediction{
		ImageID:            image.ID,
		Grade:              models.Grade(req.Grade),
		GradeConfidence:    req.GradeConfidence,
		Category:           req.Category,
		CategoryConfidence: req.CategoryConfidence,
		Model:              req.Model,
		Image:              image.Path,
	}}
	if err := s.db.SavePrediction(r.Context(), userID, saved); err != nil {
		log.Printf("[ERROR] Failed to save prediction: %v", err)
		respondError(w, http.StatusInternalServerError, "Saving analyze failed")
		return
	}

	s.notify(userID, "prediction_saved", saved)
	respondJSON(w, http.StatusCreated, map[string]any{"prediction": saved})
}

// handleSaveFeedback stores feedback on one of the caller's saved predictions
// POST /api/feedback
func (s *Server) handleSaveFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := userIDFrom(r.Context())
	prediction, owner, err := s.db.GetPrediction(r.Context(), req.PredictionID)
	if err != nil {
		log.Printf("[ERROR] Failed to load prediction %d: %v", req.PredictionID, err)
		respondError(w, http.StatusInternalServerError, "Saving feedback failed")
		return
	}
	if prediction == nil || owner != userID {
		respondError(w, http.StatusNotFound, "Prediction not found")
		return
	}

	saved := &models.SavedFeedback{Feedback: models.Feedback{
		PredictionID: prediction.ID,
		IsAgreed:     req.IsAgreed,
		Grade:        models.Grade(req.Grade),
		Comment:      req.Comment,
		SensoryScores: models.SensoryScores{
			Aroma: req.Aroma, Color: req.Color, Taste: req.Taste,
			AfterTaste: req.AfterTaste, Acceptability: req.Acceptability,
		},
	}}
	if err := s.db.SaveFeedback(r.Context(), userID, saved); err != nil {
		log.Printf("[ERROR] Failed to save feedback: %v", err)
		respondError(w, http.StatusInternalServerError, "Saving feedback failed")
		return
	}

	s.notify(userID, "feedback_saved", saved)
	respondJSON(w, http.StatusCreated, map[string]any{"feedback": saved})
}
