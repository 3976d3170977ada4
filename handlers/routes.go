package handlers

import (
	"github.com/Mariosat15/Chatvot-sub008/services"

	"github.com/gofiber/fiber/v2"
)

// SetupArenaRoutes registers the full HTTP surface. Gateway auth is applied
// globally in main, so handlers here trust the caller's user_id fields.
func SetupArenaRoutes(
	app *fiber.App,
	competitions *services.CompetitionService,
	challenges *services.ChallengeService,
	wallets *services.WalletService,
) {
	api := app.Group("/api/v1")

	// Competitions
	api.Post("/competitions", competitions.CreateCompetition)
	api.Get("/competitions", competitions.ListCompetitions)
	api.Get("/competitions/:id", competitions.GetCompetition)
	api.Post("/competitions/:id/join", competitions.JoinCompetition)
	api.Get("/competitions/:id/leaderboard", competitions.GetLeaderboard)
	api.Get("/competitions/:id/results", competitions.GetResults)
	api.Post("/competitions/:id/cancel", competitions.CancelCompetition)

	// Challenges (1v1)
	api.Post("/challenges", challenges.CreateChallenge)
	api.Get("/challenges/:id", challenges.GetChallenge)
	api.Post("/challenges/:id/accept", challenges.AcceptChallenge)
	api.Post("/challenges/:id/decline", challenges.DeclineChallenge)

	// Wallets (read-only; balance changes happen in settlement only)
	api.Get("/wallets/:user_id", wallets.GetWallet)
	api.Get("/wallets/:user_id/transactions", wallets.GetWalletTransactions)
}
