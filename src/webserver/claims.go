package webserver

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"

	"github.com/reunite-app/reunite/src/claims"
	"github.com/reunite-app/reunite/src/scoring"
)

// Evidence images above this size are rejected before they reach storage.
const maxImageBytes = 5 << 20

type Claims struct {
	svc       *claims.Service
	sanitizer *bluemonday.Policy
}

func NewClaims(svc *claims.Service) Claims {
	return Claims{svc: svc, sanitizer: bluemonday.StrictPolicy()}
}

// Submit handles the multipart claim submission: free-text evidence fields,
// security question answers as a JSON array string, and an optional image.
func (h Claims) Submit(c *gin.Context) {
	postID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || postID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid post id"})
		return
	}
	claimantID := c.GetUint64("uid")

	in := claims.SubmitInput{
		Description:  h.sanitizer.Sanitize(c.PostForm("additionalDescription")),
		SerialNumber: h.sanitizer.Sanitize(c.PostForm("serialNumber")),
		Answers:      h.parseAnswers(c.PostForm("questionAnswers")),
	}

	if file, err := c.FormFile("imageProof"); err == nil {
		if file.Size > maxImageBytes {
			c.JSON(http.StatusBadRequest, gin.H{"err": "image too large"})
			return
		}
		f, err := file.Open()
		if err == nil {
			data, readErr := io.ReadAll(io.LimitReader(f, maxImageBytes))
			f.Close()
			if readErr == nil {
				in.Image = data
				in.ImageContentType = file.Header.Get("Content-Type")
			} else {
				log.Printf("failed to read evidence image: %v", readErr)
			}
		} else {
			log.Printf("failed to open evidence image: %v", err)
		}
	}

	claim, err := h.svc.Submit(c.Request.Context(), postID, claimantID, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Claim submitted successfully", "claim": claim})
}

// parseAnswers decodes the questionAnswers form field. A malformed payload
// degrades to no answers rather than failing the submission.
func (h Claims) parseAnswers(raw string) []scoring.QuestionAnswer {
	if raw == "" {
		return nil
	}
	var decoded []struct {
		QuestionID uint64 `json:"questionId"`
		Answer     string `json:"answer"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		log.Printf("failed to parse questionAnswers: %v", err)
		return nil
	}
	out := make([]scoring.QuestionAnswer, 0, len(decoded))
	for _, a := range decoded {
		out = append(out, scoring.QuestionAnswer{
			QuestionID: a.QuestionID,
			Answer:     h.sanitizer.Sanitize(a.Answer),
		})
	}
	return out
}

func (h Claims) Decide(c *gin.Context) {
	claimID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || claimID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid claim id"})
		return
	}

	var req struct {
		Status string `json:"status" binding:"required,oneof=ACCEPTED REJECTED"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	claim, err := h.svc.Decide(c.Request.Context(), claimID, c.GetUint64("uid"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, claim)
}

func (h Claims) Withdraw(c *gin.Context) {
	claimID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || claimID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid claim id"})
		return
	}

	if err := h.svc.Withdraw(c.Request.Context(), claimID, c.GetUint64("uid")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Claim and proof image deleted successfully"})
}

func (h Claims) ListIncoming(c *gin.Context) {
	out, err := h.svc.ListForVerifier(c.Request.Context(), c.GetUint64("uid"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Claims) ListMine(c *gin.Context) {
	out, err := h.svc.ListForClaimant(c.Request.Context(), c.GetUint64("uid"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func writeError(c *gin.Context, err error) {
	if ce, ok := claims.AsError(err); ok {
		c.JSON(statusFor(ce.Code), gin.H{"err": ce.Message})
		return
	}
	log.Printf("internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"err": "internal error"})
}

func statusFor(code claims.ErrorCode) int {
	switch code {
	case claims.ErrorNotFound:
		return http.StatusNotFound
	case claims.ErrorConflict:
		return http.StatusConflict
	case claims.ErrorForbidden:
		return http.StatusForbidden
	case claims.ErrorInvalid:
		return http.StatusBadRequest
	case claims.ErrorRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
