package panel

import (
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 256

// QRText renders url as a terminal QR code.
func QRText(url string) (string, error) {
	qr, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return "", err
	}
	return qr.ToSmallString(false), nil
}

// GetQR handles GET /api/qr.png
func (s *Server) GetQR(c *gin.Context) {
	if s.publicURL == "" {
		fail(c, http.StatusNotFound, errors.New("no public URL configured"))
		return
	}
	png, err := qrcode.Encode(s.publicURL, qrcode.Medium, qrSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// PublicURL turns a listen address into a URL to open the panel with. An
// unspecified host is replaced by the first non-loopback IPv4 address, or
// localhost when there is none.
func PublicURL(listenAddr string) string {
	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return "http://" + listenAddr
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
		if lan := firstLANAddr(); lan != "" {
			host = lan
		}
	}
	return "http://" + net.JoinHostPort(host, port)
}

func firstLANAddr() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4.String()
		}
	}
	return ""
}
