package constant

// User-facing replies. Telegram renders these with Markdown parse
// mode; keep formatting markers intact when editing.
const (
	MsgWelcome = `Hello! Welcome to the Invoice Collection Bot. I can help you create a CIS invoice quickly.

How would you like to proceed?

/upload - Upload an existing invoice (PDF, DOCX, or photo) and I'll extract the details
/chat - Answer a few questions and I'll build the invoice with you`

	MsgHelp = `*Invoice Collection Bot - Help*

*Commands:*
/start - Start a new invoice
/cancel - Cancel the current invoice
/status - Show where we are
/help - Show this message

*How it works:*
1. Choose to upload a document or chat to provide details
2. If uploading: send a PDF, DOCX, or photo of your invoice
3. If chatting: answer questions about your invoice
4. Review and confirm the data
5. Receive your generated invoice`

	MsgCancelled = `Operation cancelled. Your invoice data has been discarded. Type /start to begin again anytime.`

	MsgGoodbye = `*Invoice generated successfully!*

Thank you for using the Invoice Collection Bot. Type /start to create another invoice anytime.`

	MsgUploadInstructions = `*Upload your invoice document*

I accept PDF files, Word documents (.docx) and photos (.jpg, .png).

For best results make sure the document is clear and all text is readable. Send your file now, or type /cancel to exit.`

	MsgChatStart = `*Let's create your invoice*

I'll ask you a series of questions to gather everything I need. You can type /cancel at any time to exit.

Let's begin!`

	MsgDocumentFailed = `*Document processing error*

Sorry, I couldn't process that document. It may be an unsupported format, corrupted, or too blurry to read.

Please try a different file, or type /chat to provide the details in conversation instead.`

	MsgUnsupportedFormat = `I couldn't read that file. Could you try uploading a PDF, DOCX, JPG, or PNG?`

	MsgDocumentTooLarge = `That file is too large for me to process. Please try a smaller file (under 20MB).`

	MsgUnknownCommand = `I don't recognize that command. Type /help to see what I can do.`

	MsgNotUnderstood = `I'm not sure I understood that. Could you rephrase or be more specific?`

	MsgWorkingOnIt = `I'm working on that for you...`

	MsgSessionRecovered = `Good news! I recovered your previous session. Let's continue where we left off.`

	MsgSessionExpired = `Your previous session expired, so I've started a fresh one. Type /start to begin.`
)

// Degraded-path replies. These never expose internals; the matching
// technical detail goes to the logs and the dead letter queue.
const (
	MsgAiSlowRetrying = `I'm taking a bit longer than usual to think about this. Let me try again...`

	MsgHighDemand = `I'm experiencing high demand right now. Please give me a moment...`

	MsgUsingBackup = `My main systems are temporarily unavailable, so I'm using my backup ones. Everything still works!`

	MsgManualFallback = `Automatic extraction isn't available right now, so I'll ask you for the details directly instead.`

	MsgSavedForRetry = `I couldn't finish that step just now, but I've saved your invoice and will keep retrying in the background. I'll let you know as soon as it's done.`

	MsgGeneralError = `I encountered a small hiccup, but I'm still here to help! Please try that again.`
)
