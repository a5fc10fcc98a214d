// Package quizrag embeds the quizrag pipeline in a Go program: documents are
// chunked, embedded and indexed, then used as grounding context for
// five-option multiple-choice questions.
//
// # Setup
//
//	client, _ := quizrag.New(ctx,
//	    quizrag.WithRedis("localhost:6379", ""),
//	    quizrag.WithOpenAI(quizrag.OpenAIConfig{
//	        APIKey:         os.Getenv("OPENAI_API_KEY"),
//	        EmbeddingModel: "text-embedding-3-small",
//	        ChatModel:      "gpt-4o-mini",
//	    }),
//	    quizrag.WithVectorDimensions(1536),
//	)
//	defer client.Close()
//
// # Ingest, retrieve, generate
//
//	_, _ = client.Documents().Ingest(ctx, quizrag.Document{
//	    ID: "math-1", Text: text, Subject: "수학", Unit: "일차함수",
//	})
//	passages, _ := client.Retrieve(ctx, quizrag.Query{Text: "기울기의 의미", K: 3})
//	batch, _ := client.Questions().Generate(ctx, quizrag.GenerateRequest{
//	    Count: 10, Preset: "balanced", Subject: "수학",
//	})
//
// Without WithRedis the client keeps its index in process memory.
package quizrag
