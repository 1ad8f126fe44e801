package auth

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

const loginPage = `<!doctype html>
<html lang="fr">
<head><meta charset="utf-8"><title>Connexion administrateur</title></head>
<body>
<h1>Épicerie du Quartier</h1>
%s
<form method="post" action="/api/auth/login">
<label>Email <input type="email" name="email" required></label>
<label>Mot de passe <input type="password" name="password" required></label>
<button type="submit">Se connecter</button>
</form>
</body>
</html>`

// LoginHandler handles the form post from the login page.
func (g *Gate) LoginHandler(c *gin.Context) {
	token, err := g.Login(c.PostForm("email"), c.PostForm("password"))
	if err != nil {
		log.Printf("admin login rejected for %q", c.PostForm("email"))
		c.Redirect(http.StatusSeeOther, "/admin/login?error=invalid")
		return
	}
	g.SetSession(c, token)
	c.Redirect(http.StatusSeeOther, "/admin")
}

func (g *Gate) LogoutHandler(c *gin.Context) {
	g.ClearSession(c)
	c.Redirect(http.StatusSeeOther, "/")
}

// LoginPage sends signed-in admins to the dashboard and renders the form otherwise.
func (g *Gate) LoginPage(c *gin.Context) {
	if _, ok := g.Authenticate(c); ok {
		c.Redirect(http.StatusSeeOther, "/admin")
		return
	}
	notice := ""
	if c.Query("error") == "invalid" {
		notice = `<p role="alert">Email ou mot de passe incorrect.</p>`
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, loginPage, notice)
}
