package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ClientCookieName tags a browser for rate limiting. The id carries no
// identity; sign-in state lives server side.
const ClientCookieName = "estate_agent_client"

const cookieMaxAge = 30 * 24 * 60 * 60 // 30 days

// ClientMiddleware ensures every request carries a stable client id,
// minting one on first contact. Unparsable cookies are reissued rather
// than rejected since the id only keys the rate limiter.
func ClientMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var clientID uuid.UUID

		cookie, err := c.Cookie(ClientCookieName)
		if err == http.ErrNoCookie || cookie == "" {
			clientID = uuid.New()
			c.SetCookie(ClientCookieName, clientID.String(), cookieMaxAge, "/", "", false, true)
		} else {
			clientID, err = uuid.Parse(cookie)
			if err != nil {
				clientID = uuid.New()
				c.SetCookie(ClientCookieName, clientID.String(), cookieMaxAge, "/", "", false, true)
			}
		}

		c.Set("clientID", clientID)
		c.Next()
	}
}
