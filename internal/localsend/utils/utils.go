package utils

import (
	"time"

	"github.com/0w0mewo/localsend-engine/internal/utils"
	"github.com/gofiber/fiber/v2"
)

var aliasAdj = []string{
	"Adorable",
	"Beautiful",
	"Big",
	"Bright",
	"Clean",
	"Clever",
	"Cool",
	"Cute",
	"Cunning",
	"Determined",
	"Energetic",
	"Efficient",
	"Fantastic",
	"Fast",
	"Fine",
	"Fresh",
	"Good",
	"Gorgeous",
	"Great",
	"Handsome",
	"Hot",
	"Kind",
	"Lovely",
	"Mystic",
	"Neat",
	"Nice",
	"Patient",
	"Pretty",
	"Powerful",
	"Rich",
	"Secret",
	"Smart",
	"Solid",
	"Special",
	"Strategic",
	"Strong",
	"Tidy",
	"Wise",
}

var aliasFruit = []string{
	"Apple",
	"Avocado",
	"Banana",
	"Blackberry",
	"Blueberry",
	"Broccoli",
	"Carrot",
	"Cherry",
	"Coconut",
	"Grape",
	"Lemon",
	"Lettuce",
	"Mango",
	"Melon",
	"Mushroom",
	"Onion",
	"Orange",
	"Papaya",
	"Peach",
	"Pear",
	"Pineapple",
	"Potato",
	"Pumpkin",
	"Raspberry",
	"Strawberry",
	"Tomato",
}

// NewWebServer returns the fiber app every LocalSend endpoint is mounted on.
// Bodies above BodyLimit are streamed to the handler instead of buffered.
// There is no whole-request read deadline since uploads may take
// arbitrarily long; stalls are bounded by StallListener instead.
func NewWebServer() *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               "localsend-engine",
		DisableStartupMessage: true,
		StreamRequestBody:     true,
		BodyLimit:             64 << 20,
		IdleTimeout:           60 * time.Second,
	})
}

// GenAlias returns a random "Adjective Fruit" device alias.
func GenAlias() string {
	adj := utils.RandChoice(aliasAdj)
	fruit := utils.RandChoice(aliasFruit)

	return adj + " " + fruit
}
