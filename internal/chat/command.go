package chat

import (
	"strconv"
	"strings"
)

type CommandKind int

const (
	// CommandChat means the line is not a command and should be relayed.
	CommandChat CommandKind = iota
	CommandInvalid
	CommandQuit
	CommandHelp
	CommandRoomList
	CommandRoomConnect
	CommandRoomCreate
	CommandRoomLeave
	CommandRoomMembers
	CommandRoomDelete
	CommandRoomRename
)

var commandNames = map[CommandKind]string{
	CommandChat:        "chat",
	CommandInvalid:     "invalid",
	CommandQuit:        "quit",
	CommandHelp:        "help",
	CommandRoomList:    "roomlist",
	CommandRoomConnect: "roomconnect",
	CommandRoomCreate:  "roomcreate",
	CommandRoomLeave:   "roomleave",
	CommandRoomMembers: "roommembers",
	CommandRoomDelete:  "roomdelete",
	CommandRoomRename:  "roomrename",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return "unknown"
}

// Command is the parse result for one input line. Text holds the chat text or
// the free-text argument, RoomID the numeric argument, and Reason the
// user-facing explanation for CommandInvalid.
type Command struct {
	Kind   CommandKind
	Text   string
	RoomID int
	Reason string
}

const (
	reasonBadID      = "Room ID must be a number."
	usageRoomConnect = "Usage: /roomconnect <id>"
	usageRoomDelete  = "Usage: /roomdelete <id>"
	usageRoomCreate  = "Usage: /roomcreate <name>"
	usageRoomRename  = "Usage: /roomrename <name>"
)

const helpText = "Commands:\n" +
	"/roomlist - list rooms\n" +
	"/roomconnect <id> - join a room\n" +
	"/roomcreate <name> - create a room and join it\n" +
	"/roomleave - leave the current room\n" +
	"/roommembers - list members of the current room\n" +
	"/roomdelete <id> - delete an empty room\n" +
	"/roomrename <name> - rename the current room\n" +
	"/quit - disconnect"

// ParseCommand classifies one line. It never fails: malformed commands come
// back as CommandInvalid and unknown input as CommandChat.
func ParseCommand(line string) Command {
	switch line {
	case "/quit":
		return Command{Kind: CommandQuit}
	case "/help":
		return Command{Kind: CommandHelp}
	case "/roomlist":
		return Command{Kind: CommandRoomList}
	case "/roomleave":
		return Command{Kind: CommandRoomLeave}
	case "/roommembers":
		return Command{Kind: CommandRoomMembers}
	case "/roomconnect":
		return invalid(usageRoomConnect)
	case "/roomdelete":
		return invalid(usageRoomDelete)
	case "/roomcreate":
		return invalid(usageRoomCreate)
	case "/roomrename":
		return invalid(usageRoomRename)
	}

	name, arg, found := strings.Cut(line, " ")
	if !found {
		return Command{Kind: CommandChat, Text: line}
	}

	switch name {
	case "/roomconnect":
		return parseRoomID(CommandRoomConnect, arg)
	case "/roomdelete":
		return parseRoomID(CommandRoomDelete, arg)
	case "/roomcreate":
		if arg == "" {
			return invalid(usageRoomCreate)
		}
		return Command{Kind: CommandRoomCreate, Text: arg}
	case "/roomrename":
		if arg == "" {
			return invalid(usageRoomRename)
		}
		return Command{Kind: CommandRoomRename, Text: arg}
	}
	return Command{Kind: CommandChat, Text: line}
}

func parseRoomID(kind CommandKind, arg string) Command {
	id, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return invalid(reasonBadID)
	}
	return Command{Kind: kind, RoomID: id}
}

func invalid(reason string) Command {
	return Command{Kind: CommandInvalid, Reason: reason}
}
