package script

import (
	stderrors "errors"
	"html"
	"strings"

	"github.com/dop251/goja"

	"github.com/vango-dev/vbridge/pkg/session"
	"github.com/vango-dev/vbridge/pkg/vdom"
)

func (r *Runtime) check(err error) {
	if err != nil {
		r.throw(err)
	}
}

func (r *Runtime) accessor(obj *goja.Object, name string, get func() goja.Value, set func(goja.Value)) {
	getter := r.vm.ToValue(func(goja.FunctionCall) goja.Value { return get() })
	var setter goja.Value
	if set != nil {
		setter = r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		})
	}
	obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_FALSE, goja.FLAG_TRUE)
}

func (r *Runtime) document() *goja.Object {
	doc := r.vm.NewObject()
	doc.Set("createElement", func(call goja.FunctionCall) goja.Value {
		p, err := r.s.CreateElement(call.Argument(0).String())
		r.check(err)
		return r.element(p)
	})
	doc.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		p, err := r.s.GetElementByID(call.Argument(0).String())
		if stderrors.Is(err, session.ErrNotFound) {
			return goja.Null()
		}
		r.check(err)
		return r.element(p)
	})
	r.accessor(doc, "body", func() goja.Value {
		return r.element(r.s.Body())
	}, nil)
	r.accessor(doc, "title", func() goja.Value {
		title, err := r.s.Title()
		r.check(err)
		return r.vm.ToValue(title)
	}, func(v goja.Value) {
		r.check(r.s.SetTitle(v.String()))
	})
	return doc
}

// proxyOf returns the proxy behind an element argument.
func (r *Runtime) proxyOf(v goja.Value, method string) *session.Proxy {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		r.typeError("%s: argument is not an element", method)
	}
	p, ok := r.proxies[v.ToObject(r.vm)]
	if !ok {
		r.typeError("%s: argument is not a live element", method)
	}
	return p
}

// element returns the script object of p. Each proxy has exactly one.
func (r *Runtime) element(p *session.Proxy) goja.Value {
	if p == nil {
		return goja.Null()
	}
	if obj, ok := r.objects[p]; ok {
		return obj
	}
	obj := r.vm.NewObject()
	r.objects[p] = obj
	r.proxies[obj] = p

	obj.Set("tagName", strings.ToUpper(p.Tag()))
	r.accessor(obj, "key", func() goja.Value { return r.vm.ToValue(p.Key()) }, nil)
	r.accessor(obj, "id", func() goja.Value {
		return r.vm.ToValue(p.ID())
	}, func(v goja.Value) {
		r.check(p.SetAttribute("id", v.String()))
	})
	r.accessor(obj, "textContent", func() goja.Value {
		return r.vm.ToValue(p.Text())
	}, func(v goja.Value) {
		r.check(p.SetText(v.String()))
	})
	r.accessor(obj, "innerHTML", func() goja.Value {
		if m := p.Markup(); m != "" {
			return r.vm.ToValue(m)
		}
		return r.vm.ToValue(html.EscapeString(p.Text()))
	}, func(v goja.Value) {
		r.check(p.SetMarkup(v.String()))
	})
	r.accessor(obj, "className", func() goja.Value {
		return r.vm.ToValue(strings.Join(p.Classes(), " "))
	}, func(v goja.Value) {
		r.check(p.SetAttribute("class", v.String()))
	})
	r.accessor(obj, "parentNode", func() goja.Value {
		return r.element(p.Parent())
	}, nil)
	r.accessor(obj, "children", func() goja.Value {
		kids := p.Children()
		items := make([]any, len(kids))
		for i, c := range kids {
			items[i] = r.element(c)
		}
		return r.vm.NewArray(items...)
	}, nil)
	for _, name := range []string{"value", "checked", "disabled"} {
		r.accessor(obj, name, func() goja.Value {
			v, ok := p.Prop(name)
			if !ok {
				return goja.Undefined()
			}
			return r.vm.ToValue(v)
		}, func(v goja.Value) {
			r.check(p.SetProp(name, v.Export()))
		})
	}

	obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		r.check(p.SetAttribute(call.Argument(0).String(), call.Argument(1).String()))
		return goja.Undefined()
	})
	obj.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		v, ok := p.Attribute(call.Argument(0).String())
		if !ok {
			return goja.Null()
		}
		return r.vm.ToValue(v)
	})
	obj.Set("hasAttribute", func(call goja.FunctionCall) goja.Value {
		_, ok := p.Attribute(call.Argument(0).String())
		return r.vm.ToValue(ok)
	})
	obj.Set("removeAttribute", func(call goja.FunctionCall) goja.Value {
		r.check(p.RemoveAttribute(call.Argument(0).String()))
		return goja.Undefined()
	})

	obj.Set("appendChild", func(call goja.FunctionCall) goja.Value {
		c := r.proxyOf(call.Argument(0), "appendChild")
		r.check(p.AppendChild(c))
		return call.Argument(0)
	})
	obj.Set("insertBefore", func(call goja.FunctionCall) goja.Value {
		c := r.proxyOf(call.Argument(0), "insertBefore")
		var ref *session.Proxy
		if ra := call.Argument(1); !goja.IsNull(ra) && !goja.IsUndefined(ra) {
			ref = r.proxyOf(ra, "insertBefore")
		}
		r.check(p.InsertBefore(c, ref))
		return call.Argument(0)
	})
	obj.Set("removeChild", func(call goja.FunctionCall) goja.Value {
		c := r.proxyOf(call.Argument(0), "removeChild")
		r.check(p.RemoveChild(c))
		return call.Argument(0)
	})

	obj.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		typ := call.Argument(0).String()
		fn, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			r.typeError("addEventListener: listener is not a function")
		}
		r.check(p.AddListener(typ, func(ev vdom.Event) {
			if _, err := fn(obj, r.event(ev)); err != nil {
				r.logger.Error("listener failed", "type", typ, "key", p.Key(), "err", err)
			}
		}))
		return goja.Undefined()
	})
	obj.Set("removeEventListener", func(call goja.FunctionCall) goja.Value {
		r.check(p.RemoveListener(call.Argument(0).String()))
		return goja.Undefined()
	})

	obj.Set("classList", r.classList(p))
	obj.Set("style", r.style(p))
	return obj
}

func (r *Runtime) classList(p *session.Proxy) *goja.Object {
	list := r.vm.NewObject()
	set := func(on bool) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			for _, arg := range call.Arguments {
				r.check(p.SetClass(arg.String(), on))
			}
			return goja.Undefined()
		}
	}
	list.Set("add", set(true))
	list.Set("remove", set(false))
	list.Set("toggle", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		on := !p.HasClass(name)
		if force := call.Argument(1); !goja.IsUndefined(force) {
			on = force.ToBoolean()
		}
		r.check(p.SetClass(name, on))
		return r.vm.ToValue(on)
	})
	list.Set("contains", func(call goja.FunctionCall) goja.Value {
		return r.vm.ToValue(p.HasClass(call.Argument(0).String()))
	})
	return list
}

func (r *Runtime) style(p *session.Proxy) *goja.Object {
	style := r.vm.NewObject()
	style.Set("setProperty", func(call goja.FunctionCall) goja.Value {
		r.check(p.SetStyle(call.Argument(0).String(), call.Argument(1).String()))
		return goja.Undefined()
	})
	style.Set("getPropertyValue", func(call goja.FunctionCall) goja.Value {
		return r.vm.ToValue(p.Style(call.Argument(0).String()))
	})
	style.Set("removeProperty", func(call goja.FunctionCall) goja.Value {
		prop := call.Argument(0).String()
		old := p.Style(prop)
		r.check(p.SetStyle(prop, ""))
		return r.vm.ToValue(old)
	})
	return style
}

func (r *Runtime) event(ev vdom.Event) goja.Value {
	obj := r.vm.NewObject()
	obj.Set("type", ev.Type)
	if p, ok := r.s.Lookup(ev.Key); ok {
		obj.Set("target", r.element(p))
	} else {
		obj.Set("target", goja.Null())
	}
	obj.Set("detail", ev.Detail)
	return obj
}
