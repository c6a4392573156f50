package handler

import (
	"commsync/internal/usecase"
)

var (
	conversationHandler  *ConversationHandler
	ticketHandler        *TicketHandler
	communicationHandler *CommunicationHandler
)

func Setup(
	conversationUseCase *usecase.ConversationUseCase,
	ticketUseCase *usecase.TicketUseCase,
	communicationUseCase *usecase.CommunicationUseCase,
) {
	conversationHandler = NewConversationHandler(conversationUseCase)
	ticketHandler = NewTicketHandler(ticketUseCase)
	communicationHandler = NewCommunicationHandler(communicationUseCase)
}

func GetConversationHandler() *ConversationHandler {
	return conversationHandler
}

func GetTicketHandler() *TicketHandler {
	return ticketHandler
}

func GetCommunicationHandler() *CommunicationHandler {
	return communicationHandler
}
