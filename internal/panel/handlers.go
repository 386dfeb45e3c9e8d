package panel

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bhandras/delaydeck/internal/app"
	"github.com/bhandras/delaydeck/internal/delay"
)

// errorStatus maps an operation error to an HTTP status.
func errorStatus(err error) int {
	var (
		connErr *delay.ConnectError
		callErr *delay.RemoteCallError
	)
	switch {
	case errors.Is(err, delay.ErrInvalidDelay):
		return http.StatusBadRequest
	case errors.Is(err, delay.ErrAlreadyActive), errors.Is(err, delay.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, delay.ErrCallTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &connErr), errors.As(err, &callErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

// GetStatus handles GET /api/status
func (s *Server) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.app.Status())
}

// PostConnect handles POST /api/connect
func (s *Server) PostConnect(c *gin.Context) {
	var req app.ConnectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
	}
	if req.Port != nil && (*req.Port < 1 || *req.Port > 65535) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "port must be between 1 and 65535"})
		return
	}

	inv, err := s.app.Connect(c.Request.Context(), req)
	if err != nil {
		fail(c, errorStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    s.app.Status(),
		"inventory": inv,
	})
}

// PostDisconnect handles POST /api/disconnect
func (s *Server) PostDisconnect(c *gin.Context) {
	s.app.Disconnect()
	c.JSON(http.StatusOK, s.app.Status())
}

// GetInventory handles GET /api/inventory
func (s *Server) GetInventory(c *gin.Context) {
	inv := s.app.Inventory()
	if inv.Inputs == nil {
		inv.Inputs = []string{}
	}
	if inv.Scenes == nil {
		inv.Scenes = []string{}
	}
	c.JSON(http.StatusOK, inv)
}

// settingsView is the settings as shown to clients: the password itself is
// never returned.
type settingsView struct {
	Port        int               `json:"port"`
	HasPassword bool              `json:"hasPassword"`
	Delay       delay.DelayConfig `json:"delay"`
}

type settingsRequest struct {
	Port int `json:"port"`
	// Password is left unchanged when omitted; "" clears it.
	Password *string           `json:"password"`
	Delay    delay.DelayConfig `json:"delay"`
}

// GetSettings handles GET /api/settings
func (s *Server) GetSettings(c *gin.Context) {
	st := s.app.Settings()
	c.JSON(http.StatusOK, settingsView{
		Port:        st.Port,
		HasPassword: st.Password != "",
		Delay:       st.Delay,
	})
}

// PutSettings handles PUT /api/settings
func (s *Server) PutSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	next := s.app.Settings()
	if req.Port != 0 {
		next.Port = req.Port
	}
	if req.Password != nil {
		next.Password = *req.Password
	}
	next.Delay = req.Delay
	if err := next.Validate(); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	if err := s.app.UpdateSettings(c.Request.Context(), next); err != nil {
		fail(c, errorStatus(err), err)
		return
	}
	s.GetSettings(c)
}

// PostActivate handles POST /api/delay/activate
func (s *Server) PostActivate(c *gin.Context) {
	if err := s.app.Activate(c.Request.Context()); err != nil {
		fail(c, errorStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, s.app.Status())
}

// PostDeactivate handles POST /api/delay/deactivate
func (s *Server) PostDeactivate(c *gin.Context) {
	if err := s.app.Deactivate(c.Request.Context()); err != nil {
		fail(c, errorStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, s.app.Status())
}
