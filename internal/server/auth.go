package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"studioline/internal/domain"
	"studioline/internal/engine/identity"
	"studioline/internal/repo"
	"studioline/internal/token"
)

type claimsKey struct{}

func withClaims(ctx context.Context, c token.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func claimsFromContext(ctx context.Context) (token.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(token.Claims)
	return c, ok
}

func claimsFromRequest(ctx context.Context) (token.Claims, huma.StatusError) {
	if c, ok := claimsFromContext(ctx); ok && c.PrincipalID != "" {
		return c, nil
	}
	return token.Claims{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// publicPaths are reachable without credentials.
func publicPaths(basePath string) []string {
	return []string{
		path.Join(basePath, "health"),
		path.Join(basePath, "auth/login"),
		path.Join(basePath, "auth/signup"),
		path.Join(basePath, "auth/verify"),
		path.Join(basePath, "openapi.json"),
	}
}

// authenticateAPIKey resolves an operational key to its staff principal.
func authenticateAPIKey(ctx context.Context, r repo.Repo, key string) (token.Claims, error) {
	if strings.TrimSpace(key) == "" {
		return token.Claims{}, errors.New("api key required")
	}
	apiKey, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey(key))
	if err != nil {
		return token.Claims{}, err
	}
	st, err := r.GetStaff(ctx, apiKey.StaffID)
	if err != nil {
		return token.Claims{}, err
	}
	return token.Claims{
		PrincipalID: st.ID,
		Kind:        domain.KindStaff,
		Name:        st.Name,
		PhoneNumber: st.PhoneNumber,
		Role:        st.Role,
	}, nil
}

func newAuthMiddleware(basePath string, cfg Config) func(http.Handler) http.Handler {
	open := map[string]bool{}
	for _, p := range publicPaths(basePath) {
		open[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			// Only enforce for API base path.
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if open[strings.TrimSuffix(req.URL.Path, "/")] {
				next.ServeHTTP(w, req)
				return
			}

			authHeader := strings.TrimSpace(req.Header.Get("Authorization"))
			apiKeyHeader := strings.TrimSpace(req.Header.Get("X-Api-Key"))

			if authHeader != "" {
				raw, ok := bearerToken(authHeader)
				if !ok {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_token", "invalid token", nil))
					return
				}
				claims, err := cfg.Tokens.Verify(raw)
				if err != nil {
					// Expired, tampered and malformed all collapse here.
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_token", "invalid token", nil))
					return
				}
				next.ServeHTTP(w, req.WithContext(withClaims(req.Context(), claims)))
				return
			}

			if apiKeyHeader != "" {
				claims, err := authenticateAPIKey(req.Context(), cfg.Engine.Repo, apiKeyHeader)
				if err != nil {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				next.ServeHTTP(w, req.WithContext(withClaims(req.Context(), claims)))
				return
			}

			respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}

func claimsOf(p identity.Principal) token.Claims {
	return token.Claims{
		PrincipalID: p.ID,
		Kind:        p.Kind,
		Name:        p.Name,
		PhoneNumber: p.PhoneNumber,
		Role:        p.Role,
	}
}

func registerAuth(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Login with phone number and password",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		Body LoginResponse `json:"body"`
	}, error) {
		p, err := cfg.Identity.Authenticate(ctx, input.Body.PhoneNumber, input.Body.Password)
		if err != nil {
			return nil, handleError(err)
		}
		claims := claimsOf(p)
		signed, err := cfg.Tokens.Issue(claims)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LoginResponse `json:"body"`
		}{Body: LoginResponse{
			Token:     signed,
			Principal: principalResponse(p.ID, string(p.Kind), p.Name, p.PhoneNumber, string(p.Role)),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "signup",
		Method:        http.MethodPost,
		Path:          "/auth/signup",
		Summary:       "Register a customer or coworker account",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body SignupRequest `json:"body"`
	}) (*struct {
		Body LoginResponse `json:"body"`
	}, error) {
		p, err := cfg.Identity.Register(ctx, identity.RegisterOptions{
			Kind:        domain.Kind(input.Body.Kind),
			Name:        input.Body.Name,
			PhoneNumber: input.Body.PhoneNumber,
			Password:    input.Body.Password,
			Company:     input.Body.Company,
			Skills:      input.Body.Skills,
		})
		if err != nil {
			return nil, handleError(err)
		}
		signed, err := cfg.Tokens.Issue(claimsOf(p))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LoginResponse `json:"body"`
		}{Body: LoginResponse{
			Token:     signed,
			Principal: principalResponse(p.ID, string(p.Kind), p.Name, p.PhoneNumber, ""),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "verify-token",
		Method:      http.MethodPost,
		Path:        "/auth/verify",
		Summary:     "Verify a token and re-check the principal in the store",
	}, func(ctx context.Context, input *struct {
		Body VerifyTokenRequest `json:"body"`
	}) (*struct {
		Body VerifyTokenResponse `json:"body"`
	}, error) {
		claims, err := cfg.Tokens.Verify(input.Body.Token)
		if err != nil {
			return &struct {
				Body VerifyTokenResponse `json:"body"`
			}{Body: VerifyTokenResponse{Valid: false}}, nil
		}
		if input.Body.PrincipalID != "" && input.Body.PrincipalID != claims.PrincipalID {
			return &struct {
				Body VerifyTokenResponse `json:"body"`
			}{Body: VerifyTokenResponse{Valid: true, Exists: false}}, nil
		}
		exists, err := cfg.Identity.VerifyIdentity(ctx, claims.Kind, claims.PrincipalID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := VerifyTokenResponse{Valid: true, Exists: exists}
		if exists {
			pr := principalResponse(claims.PrincipalID, string(claims.Kind), claims.Name, claims.PhoneNumber, string(claims.Role))
			resp.Principal = &pr
		}
		return &struct {
			Body VerifyTokenResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func registerMe(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body PrincipalResponse `json:"body"`
	}, error) {
		claims, authErr := claimsFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body PrincipalResponse `json:"body"`
		}{Body: principalResponse(claims.PrincipalID, string(claims.Kind), claims.Name, claims.PhoneNumber, string(claims.Role))}, nil
	})
}
