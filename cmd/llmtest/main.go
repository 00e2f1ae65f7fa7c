// llmtest is a manual smoke check for the classifier backends: it sends one
// sample turn through whichever providers are configured and prints the
// classification each produced. Not wired into any automated flow.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/joho/godotenv"

	"github.com/rapportlabs/rapport/cmd/mainconfig"
	"github.com/rapportlabs/rapport/internal/classifier"
	appconfig "github.com/rapportlabs/rapport/internal/config"
	"github.com/rapportlabs/rapport/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.NewText("info")

	message := "I got the promotion!! I could not have done it without your pep talks"
	if len(os.Args) > 1 {
		message = os.Args[1]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Println("classifier smoke check")
	fmt.Printf("message: %q\n\n", message)

	if cfg.GeminiAPIKey != "" {
		fmt.Println("[gemini]")
		gemini, err := classifier.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			fmt.Printf("  client error: %v\n", err)
		} else {
			adapter := classifier.NewAdapter(gemini, cfg.GeminiModelID, cfg.ClassifierTimeout, logger)
			printEvent(adapter.Classify(ctx, message, nil))
		}
	} else {
		fmt.Println("[gemini] skipped, GEMINI_API_KEY not set")
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		fmt.Printf("[bedrock] aws config error: %v\n", err)
	} else {
		fmt.Println("[bedrock]")
		bedrock := classifier.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
		adapter := classifier.NewAdapter(bedrock, cfg.BedrockModelID, cfg.ClassifierTimeout, logger)
		printEvent(adapter.Classify(ctx, message, nil))
	}

	fmt.Println("[keyword fallback]")
	adapter := classifier.NewAdapter(nil, "", cfg.ClassifierTimeout, logger)
	printEvent(adapter.Classify(ctx, message, nil))
}

func printEvent(ev classifier.ClassifiedEvent) {
	out, err := json.MarshalIndent(ev, "  ", "  ")
	if err != nil {
		fmt.Printf("  marshal error: %v\n", err)
		return
	}
	fmt.Printf("  %s\n", out)
}
