package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/procurahq/docintel/internal/model"
	"github.com/procurahq/docintel/pkg/anthropic"
)

// ErrNotReady is returned by Chat when too few pages are embedded. The caller
// must run Prepare before retrying.
var ErrNotReady = eris.New("retrieval: document not ready, run prepare first")

const chatSystemText = `You are an assistant answering questions about a Brazilian procurement or contract document (edital, contrato, termo de referencia). Answer only from the document excerpts provided; if the excerpts do not contain the answer, say so. Answer in the language of the question. Cite the page numbers you relied on.`

const noContextResponse = "Nao encontrei trechos relevantes no documento para essa pergunta. Tente reformular ou pergunte sobre outro aspecto do documento."

// ChatReply is one assistant turn with the pages that grounded it.
type ChatReply struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	SourcePages    []int  `json:"source_pages,omitempty"`
}

// Chat runs one grounded conversation turn: retrieve the most relevant pages,
// answer from them with recent history, and persist both sides of the turn.
// When nothing passes the similarity floor the reply is a fixed fallback and
// the generation oracle is not called.
func (e *Engine) Chat(ctx context.Context, documentID, message, conversationID string, topK int) (*ChatReply, error) {
	log := zap.L().With(zap.String("document_id", documentID))

	ready, err := e.IsReady(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !ready {
		return nil, ErrNotReady
	}

	conv, err := e.resolveConversation(ctx, documentID, conversationID)
	if err != nil {
		return nil, err
	}

	historyLimit := e.cfg.Retrieval.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 10
	}
	history, err := e.store.ListMessages(ctx, conv.ID, historyLimit)
	if err != nil {
		return nil, err
	}

	if _, err := e.store.AppendMessage(ctx, model.Message{
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        message,
	}); err != nil {
		return nil, err
	}

	hits, err := e.Search(ctx, documentID, message, topK)
	if err != nil {
		return nil, err
	}

	reply := &ChatReply{ConversationID: conv.ID}
	if len(hits) == 0 {
		reply.Content = noContextResponse
	} else {
		content, err := e.generate(ctx, message, hits, history)
		if err != nil {
			return nil, err
		}
		reply.Content = content
		for _, hit := range hits {
			reply.SourcePages = append(reply.SourcePages, hit.PageNumber)
		}
	}

	if _, err := e.store.AppendMessage(ctx, model.Message{
		ConversationID: conv.ID,
		Role:           model.RoleAssistant,
		Content:        reply.Content,
		SourcePages:    reply.SourcePages,
	}); err != nil {
		return nil, err
	}

	log.Info("retrieval: chat turn",
		zap.String("conversation_id", conv.ID),
		zap.Int("retrieved_pages", len(hits)),
	)
	return reply, nil
}

func (e *Engine) resolveConversation(ctx context.Context, documentID, conversationID string) (*model.Conversation, error) {
	if conversationID != "" {
		conv, err := e.store.GetConversation(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		if conv != nil {
			if conv.DocumentID != documentID {
				return nil, eris.Errorf("retrieval: conversation %s belongs to another document", conversationID)
			}
			return conv, nil
		}
	}
	return e.store.CreateConversation(ctx, documentID)
}

func (e *Engine) generate(ctx context.Context, question string, hits []ScoredPage, history []model.Message) (string, error) {
	var prompt strings.Builder
	prompt.WriteString("TRECHOS DO DOCUMENTO:\n")
	for _, hit := range hits {
		fmt.Fprintf(&prompt, "\n[Pagina %d]\n%s\n", hit.PageNumber, hit.Text)
	}
	fmt.Fprintf(&prompt, "\nPERGUNTA: %s", question)

	messages := make([]anthropic.Message, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, anthropic.Message{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, anthropic.Message{Role: "user", Content: prompt.String()})

	resp, err := e.oracle.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.cfg.Anthropic.ChatModel,
		MaxTokens: int64(e.cfg.Anthropic.MaxTokens),
		System:    anthropic.BuildCachedSystemBlocks(chatSystemText),
		Messages:  messages,
	})
	if err != nil {
		return "", eris.Wrap(err, "retrieval: generation oracle")
	}
	resp.Usage.LogCost(e.cfg.Anthropic.ChatModel, "chat")

	return anthropic.ExtractText(resp), nil
}
